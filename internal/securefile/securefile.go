// Package securefile persists small JSON documents with atomic replace semantics and optional
// age encryption. A reader never observes a half-written document: writes go to a temporary
// file in the same directory which is synced and renamed over the target.
package securefile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
)

const filePerm = 0o600

// File is a JSON document on disk.
type File struct {
	path     string
	identity *age.X25519Identity
}

type Option func(*File)

// WithIdentity encrypts the document to the identity's recipient and decrypts it with the identity.
func WithIdentity(identity *age.X25519Identity) Option {
	return func(f *File) {
		f.identity = identity
	}
}

func New(path string, options ...Option) *File {
	f := &File{path: path}
	for _, opt := range options {
		opt(f)
	}
	return f
}

func (f *File) Path() string {
	return f.path
}

func (f *File) Encrypted() bool {
	return f.identity != nil
}

// ReadJSON decodes the document into v. It reports false, without error, when the file does not exist.
func (f *File) ReadJSON(v any) (bool, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("securefile read %s: %w", f.path, err)
	}

	if f.identity != nil {
		r, err := age.Decrypt(bytes.NewReader(data), f.identity)
		if err != nil {
			return false, fmt.Errorf("securefile decrypt %s: %w", f.path, err)
		}
		if data, err = io.ReadAll(r); err != nil {
			return false, fmt.Errorf("securefile decrypt %s: %w", f.path, err)
		}
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("securefile decode %s: %w", f.path, err)
	}
	return true, nil
}

// WriteJSON atomically replaces the document with v.
func (f *File) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("securefile encode %s: %w", f.path, err)
	}

	if f.identity != nil {
		var buf bytes.Buffer
		w, err := age.Encrypt(&buf, f.identity.Recipient())
		if err != nil {
			return fmt.Errorf("securefile encrypt %s: %w", f.path, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("securefile encrypt %s: %w", f.path, err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("securefile encrypt %s: %w", f.path, err)
		}
		data = buf.Bytes()
	}

	return writeAtomic(f.path, data)
}

// Remove deletes the document. A missing file is not an error.
func (f *File) Remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("securefile remove %s: %w", f.path, err)
	}
	return nil
}

// LoadOrCreateIdentity reads an age X25519 identity from path, generating and storing a new one
// when the file does not exist yet.
func LoadOrCreateIdentity(path string) (*age.X25519Identity, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		identity, err := age.ParseX25519Identity(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("parse identity %s: %w", path, err)
		}
		return identity, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read identity %s: %w", path, err)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	if err := writeAtomic(path, []byte(identity.String()+"\n")); err != nil {
		return nil, err
	}
	return identity, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("securefile mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("securefile create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("securefile write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("securefile sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("securefile close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		return fmt.Errorf("securefile chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("securefile rename %s: %w", path, err)
	}
	return nil
}
