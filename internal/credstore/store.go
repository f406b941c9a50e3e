package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
)

// credentialKey is the top-level document key the Claude Code CLI nests the
// OAuth record under.
const credentialKey = "claudeAiOauth"

// ErrNotFound indicates the store has no credential entry at all.
var ErrNotFound = errors.New("credentials not found")

// ErrCorrupt indicates the store holds content that cannot be parsed as a
// credential document.
var ErrCorrupt = errors.New("credential store corrupt")

// Store provides uniform read/write access to wherever the Claude Code CLI
// keeps its credential document. Implementations hold no business logic;
// expiry evaluation and refresh belong to the token lifecycle manager.
type Store interface {
	// Read returns the parsed credential document.
	// Returns ErrNotFound if the store has no entry and ErrCorrupt if the
	// stored content cannot be parsed.
	Read(ctx context.Context) (*Document, error)

	// Write overwrites the entire document. The update is atomic from the
	// caller's point of view. Write failures are non-fatal to resolution:
	// callers log them and keep using the in-memory credential.
	Write(ctx context.Context, doc *Document) error

	// Source names the backing store for logging.
	Source() string
}

// DefaultStore selects the platform store: the macOS Keychain on darwin,
// the plain credentials file everywhere else.
func DefaultStore() (Store, error) {
	if runtime.GOOS == "darwin" {
		return NewKeychainStore()
	}
	return NewFileStore()
}

// Credentials is the OAuth credential record written by the Claude Code CLI
// login flow. A record without an access token is unusable regardless of the
// other fields.
type Credentials struct {
	AccessToken      string   `json:"accessToken"`
	RefreshToken     string   `json:"refreshToken,omitempty"`
	ExpiresAt        int64    `json:"expiresAt,omitempty"` // epoch milliseconds
	Scopes           []string `json:"scopes,omitempty"`
	SubscriptionType string   `json:"subscriptionType,omitempty"`
}

// Document is the full credential document as stored. Besides the OAuth
// record it may carry sibling keys owned by the CLI (organization metadata
// and the like); those are preserved verbatim across a read-modify-write
// cycle.
type Document struct {
	Credentials Credentials

	// extra holds all top-level keys other than the credential record.
	extra map[string]json.RawMessage
}

// ParseDocument decodes the raw store content into a Document.
// Malformed JSON is reported as ErrCorrupt rather than a bare decode error.
func ParseDocument(data []byte) (*Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	doc := &Document{extra: top}
	if raw, ok := top[credentialKey]; ok {
		if err := json.Unmarshal(raw, &doc.Credentials); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		delete(doc.extra, credentialKey)
	}

	return doc, nil
}

// Encode serializes the document back to the stored JSON form, with the
// credential record under its fixed key and all other keys untouched.
func (d *Document) Encode() ([]byte, error) {
	top := make(map[string]json.RawMessage, len(d.extra)+1)
	for k, v := range d.extra {
		top[k] = v
	}

	creds, err := json.Marshal(d.Credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal credentials: %w", err)
	}
	top[credentialKey] = creds

	return json.Marshal(top)
}
