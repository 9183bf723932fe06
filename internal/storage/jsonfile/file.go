// Package jsonfile reads and writes the users file: a JSON array of user
// objects rewritten as a whole on every save.
package jsonfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"example.com/userapi/internal/domain"
)

var ErrMalformed = errors.New("malformed users file")

const defaultMode os.FileMode = 0o644

// Load reads every user stored at path. A missing file yields an error
// matching os.ErrNotExist; undecodable content yields ErrMalformed.
func Load(path string) ([]domain.User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrMalformed, path)
	}
	var users []domain.User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if users == nil {
		return nil, fmt.Errorf("%w: %s holds null", ErrMalformed, path)
	}
	return users, nil
}

// Save replaces the file at path with users. The data goes to a temporary
// file in the same directory first, then is renamed over path. An existing
// file keeps its permissions; a new one is created 0644.
func Save(path string, users []domain.User) error {
	if users == nil {
		users = []domain.User{}
	}
	data, err := json.MarshalIndent(users, "", " ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	mode := defaultMode
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
