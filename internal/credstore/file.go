package credstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"claudebridge/pkg/logging"
)

// FileStore reads and writes the credential document as literal JSON text
// at the CLI's fixed per-user path, ~/.claude/.credentials.json.
type FileStore struct {
	path string
}

// NewFileStore creates a file store rooted at the default credentials path.
func NewFileStore() (*FileStore, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return &FileStore{path: filepath.Join(homeDir, ".claude", ".credentials.json")}, nil
}

// NewFileStoreWithPath creates a file store with a custom path.
// This is primarily used for testing.
func NewFileStoreWithPath(path string) *FileStore {
	return &FileStore{path: path}
}

// Source returns the store name for logging.
func (s *FileStore) Source() string {
	return "file"
}

// Path returns the credentials file path.
func (s *FileStore) Path() string {
	return s.path
}

// Read loads and parses the credentials file.
func (s *FileStore) Read(ctx context.Context) (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	return ParseDocument(data)
}

// Write overwrites the credentials file with the encoded document.
// The file keeps owner-only permissions; it holds live tokens.
func (s *FileStore) Write(ctx context.Context, doc *Document) error {
	data, err := doc.Encode()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}

	return nil
}

// Watch reports external modifications to the credentials file, such as the
// Claude Code CLI refreshing the token on its own. One value is delivered
// per observed change; the channel closes when ctx is done.
//
// The watch is established on the parent directory because the CLI replaces
// the file rather than writing it in place.
func (s *FileStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch credentials directory: %w", err)
	}

	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)
		defer func() { _ = watcher.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != s.path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				select {
				case changes <- struct{}{}:
				default:
					// Collapse bursts; one pending notification is enough.
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warn("CredStore", "credentials watch error: %v", err)
			}
		}
	}()

	return changes, nil
}
