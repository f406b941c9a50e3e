package credstore

import (
	"context"
	"fmt"
	"os/exec"
	"os/user"
	"strings"
	"time"
)

const (
	// keychainService is the generic-password service name the Claude Code
	// CLI stores its credentials under on macOS.
	keychainService = "Claude Code-credentials"

	// keychainTimeout bounds every `security` invocation. Keychain prompts
	// can hang indefinitely when the keychain is locked.
	keychainTimeout = 5 * time.Second
)

// KeychainStore reads and writes the credential document via the macOS
// `security` tool. Updates are performed as delete-then-add, which is the
// closest the keychain offers to an atomic overwrite.
type KeychainStore struct {
	service string
	account string
}

// NewKeychainStore creates a keychain store for the current user's
// Claude Code credential entry.
func NewKeychainStore() (*KeychainStore, error) {
	u, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("failed to determine current user: %w", err)
	}
	return &KeychainStore{service: keychainService, account: u.Username}, nil
}

// NewKeychainStoreWithEntry creates a keychain store for an explicit
// service/account pair. This is primarily used for testing.
func NewKeychainStoreWithEntry(service, account string) *KeychainStore {
	return &KeychainStore{service: service, account: account}
}

// Source returns the store name for logging.
func (s *KeychainStore) Source() string {
	return "keychain"
}

// Read looks up the credential entry and parses its JSON payload.
// A failed lookup is reported as ErrNotFound; `security` exits non-zero
// both when the entry is absent and when access is denied, and neither is
// recoverable here.
func (s *KeychainStore) Read(ctx context.Context) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, keychainTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "security", "find-generic-password",
		"-s", s.service,
		"-a", s.account,
		"-w",
	).Output()
	if err != nil {
		return nil, ErrNotFound
	}

	raw := strings.TrimSpace(string(out))
	if raw == "" {
		return nil, ErrNotFound
	}

	return ParseDocument([]byte(raw))
}

// Write replaces the credential entry with the encoded document.
func (s *KeychainStore) Write(ctx context.Context, doc *Document) error {
	data, err := doc.Encode()
	if err != nil {
		return err
	}

	deleteCtx, cancel := context.WithTimeout(ctx, keychainTimeout)
	defer cancel()

	// Remove any existing entry first; add-generic-password refuses to
	// overwrite. A delete failure is expected when no entry exists yet.
	_ = exec.CommandContext(deleteCtx, "security", "delete-generic-password",
		"-s", s.service,
		"-a", s.account,
	).Run()

	addCtx, cancel := context.WithTimeout(ctx, keychainTimeout)
	defer cancel()

	cmd := exec.CommandContext(addCtx, "security", "add-generic-password",
		"-s", s.service,
		"-a", s.account,
		"-w", string(data),
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to write keychain entry: %w (%s)", err, strings.TrimSpace(string(out)))
	}

	return nil
}
