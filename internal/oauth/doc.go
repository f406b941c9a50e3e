// Package oauth owns the lifecycle of the Claude Code OAuth credential.
//
// The credential itself is created by the external `claude` login flow and
// lives in the platform credential store (see internal/credstore). This
// package never creates or deletes it; it only resolves a usable access
// token out of it:
//
//  1. Read the stored credential document.
//  2. Evaluate expiry against a 5-minute safety buffer.
//  3. If expired (or near expiry) and a refresh token is present, refresh
//     via the fixed token endpoint using the refresh_token grant.
//  4. Persist the updated document back to the store it came from. A failed
//     write is logged and tolerated; the freshly obtained token is still
//     returned for the current call and the next resolution simply
//     refreshes again.
//
// Concurrent resolutions are collapsed through a singleflight group so at
// most one refresh request is in flight per Manager; late callers receive
// the first refresh's result instead of racing writes to the store.
//
// Token values are never logged.
package oauth
