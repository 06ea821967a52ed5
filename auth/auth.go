// Package auth loads and stores the backend credentials used by the sync
// worker. The interactive client writes the auth cache after a successful
// login; the worker only ever reads it.
package auth

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"
)

// A TokenProvider hands out the bearer token for backend requests. An empty
// token means no user is signed in and the drain pass should be skipped.
type TokenProvider interface {
	Token() (string, error)
}

// Credentials is the on-disk auth cache shared with the interactive client.
type Credentials struct {
	Token   string    `json:"token"`
	UserID  string    `json:"user_id"`
	SavedAt time.Time `json:"saved_at"`
}

// FileProvider reads credentials from a JSON file on every call, so a login
// or logout in the foreground is picked up by the next drain pass without a
// restart.
type FileProvider struct {
	Path string
}

// Token returns the saved bearer token, or the empty string if no
// credentials file exists yet.
func (f *FileProvider) Token() (string, error) {
	creds, err := f.Load()
	if err != nil {
		return "", err
	}
	if creds == nil {
		return "", nil
	}
	return creds.Token, nil
}

// Load reads the credentials file. A missing file is not an error; it just
// means nobody has signed in on this device.
func (f *FileProvider) Load() (*Credentials, error) {
	data, err := ioutil.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	creds := new(Credentials)
	if err := json.Unmarshal(data, creds); err != nil {
		return nil, err
	}
	return creds, nil
}

// Save writes the credentials file, creating parent directories as needed.
// Credentials contain a bearer token so the file is not world readable.
func (f *FileProvider) Save(creds *Credentials) error {
	if creds.SavedAt.IsZero() {
		creds.SavedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0700); err != nil {
		return err
	}
	return ioutil.WriteFile(f.Path, data, 0600)
}

// Clear removes the credentials file. Clearing credentials that were never
// saved is not an error.
func (f *FileProvider) Clear() error {
	err := os.Remove(f.Path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// StaticProvider returns a fixed token. Used in tests and in setups where
// the token comes from the environment.
type StaticProvider struct {
	AuthToken string
}

func (s *StaticProvider) Token() (string, error) {
	return s.AuthToken, nil
}
