// Package localstate persists small per-session client state, such as the display name
// last used to join a session, in a yaml file. Nothing in it is needed for correctness.
package localstate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

type document struct {
	Participants map[string]string `yaml:"participants"`
}

type File struct {
	path string
	mu   sync.Mutex
}

func Open(path string) *File {
	return &File{path: path}
}

// DefaultPath is the state file under the user's config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "engagements", "state.yaml")
}

func (f *File) load() (document, error) {
	doc := document{Participants: map[string]string{}}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("failed to parse %s: %w", f.path, err)
	}
	if doc.Participants == nil {
		doc.Participants = map[string]string{}
	}
	return doc, nil
}

// ParticipantName returns the name last used in sessionID, or "" if none.
func (f *File) ParticipantName(sessionID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return "", err
	}
	return doc.Participants[sessionID], nil
}

// SetParticipantName remembers name for sessionID.
func (f *File) SetParticipantName(sessionID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return err
	}
	doc.Participants[sessionID] = name

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return os.Rename(tmp, f.path)
}
