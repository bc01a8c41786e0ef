// Package store persists JSON documents inside the workspace root.
//
// Documents are whole-value replace-on-save. Load has a creation side
// effect: reading a path that does not exist writes the caller's default
// there first. Writes go through a temp file and rename, so a crash mid-save
// leaves the previous document intact.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/JonMunkholm/investmcp/internal/core"
	"github.com/JonMunkholm/investmcp/internal/sandbox"
)

// filePerm is the mode for documents written by the store.
const filePerm = 0o644

// Store reads and writes JSON documents at guarded paths.
type Store struct {
	guard *sandbox.Guard
}

// New creates a Store confined by guard.
func New(guard *sandbox.Guard) *Store {
	return &Store{guard: guard}
}

// Guard returns the path guard the store resolves through.
func (s *Store) Guard() *sandbox.Guard {
	return s.guard
}

// Load decodes the document at rel into out. If the document does not exist,
// def is written there as pretty JSON and then decoded into out, so out
// always receives a value deep-equal to what is on disk.
//
// Hand-edited documents may carry comments or trailing commas; those are
// stripped before decoding. Anything else that fails to decode is reported
// as core.ErrMalformedDocument.
func (s *Store) Load(rel string, def any, out any) error {
	p, err := s.guard.Resolve(rel)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(p.Abs)
	if errors.Is(err, fs.ErrNotExist) {
		data, err = Marshal(def)
		if err != nil {
			return fmt.Errorf("encode default for %s: %w", rel, err)
		}
		if err := WriteFileAtomic(p.Abs, data, filePerm); err != nil {
			return fmt.Errorf("create %s: %w", rel, err)
		}
	} else if err != nil {
		return fmt.Errorf("read %s: %w", rel, err)
	}

	if err := json.Unmarshal(jsonc.ToJSON(data), out); err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrMalformedDocument, rel, err)
	}
	return nil
}

// Save replaces the document at rel with doc, creating parent directories.
func (s *Store) Save(rel string, doc any) error {
	p, err := s.guard.Resolve(rel)
	if err != nil {
		return err
	}

	data, err := Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", rel, err)
	}
	if err := WriteFileAtomic(p.Abs, data, filePerm); err != nil {
		return fmt.Errorf("save %s: %w", rel, err)
	}
	return nil
}

// Exists reports whether a document is present at rel.
func (s *Store) Exists(rel string) (bool, error) {
	p, err := s.guard.Resolve(rel)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p.Abs)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Marshal renders v as 2-space indented JSON. Non-ASCII text and HTML
// characters are written literally rather than escaped.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
