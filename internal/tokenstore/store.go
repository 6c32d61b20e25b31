// Package tokenstore persists the authentication token and the small
// user-data record under fixed keys. It holds no logic beyond get and set:
// the empty string is the "cleared" sentinel and keys are never deleted.
package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fakeyudi/testgen/internal/logger"
)

// Fixed keys of the persisted record.
const (
	KeyToken = "token"
	KeyData  = "data"
)

// ErrNoUserData is returned by UserData when the data key holds the cleared sentinel.
var ErrNoUserData = errors.New("no user data")

// UserData is the record stored under KeyData.
type UserData struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// MalformedDataError is returned when KeyData holds something that is not a UserData record.
type MalformedDataError struct {
	Raw string
	Err error
}

func (e *MalformedDataError) Error() string {
	return "malformed user data: " + e.Err.Error()
}

func (e *MalformedDataError) Unwrap() error {
	return e.Err
}

// Store is the durable key/value delegate of the session manager.
type Store interface {
	Token() (string, error)
	SetToken(token string) error
	UserData() (*UserData, error) // ErrNoUserData when cleared
	SetUserData(d *UserData) error // nil writes the cleared sentinel
}

// record mirrors the on-disk layout: both values are strings, data holds JSON text.
type record struct {
	Token string `json:"token"`
	Data  string `json:"data"`
}

// diskStore is the concrete Store that writes to the XDG data directory.
type diskStore struct {
	mu   sync.Mutex
	path string // full path to state.json
}

// NewStore returns a Store backed by the XDG data directory.
// Path: $XDG_DATA_HOME/testgen/state.json or ~/.local/share/testgen/state.json
func NewStore() (Store, error) {
	dir, err := DataDir()
	if err != nil {
		return nil, fmt.Errorf("resolving data directory: %w", err)
	}
	return Open(dir)
}

// Open returns a Store persisting to state.json inside dir, creating dir if needed.
func Open(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &diskStore{path: filepath.Join(dir, "state.json")}, nil
}

// DataDir returns the testgen-specific XDG data directory.
func DataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "testgen"), nil
}

// Path returns the file a Store returned by Open(dir) writes to.
func Path(dir string) string {
	return filepath.Join(dir, "state.json")
}

func (d *diskStore) Token() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, err := d.read()
	if err != nil {
		return "", err
	}
	return r.Token, nil
}

func (d *diskStore) SetToken(token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, err := d.read()
	if err != nil {
		return err
	}
	r.Token = token
	return d.write(r)
}

func (d *diskStore) UserData() (*UserData, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, err := d.read()
	if err != nil {
		return nil, err
	}
	return decodeUserData(r.Data)
}

func (d *diskStore) SetUserData(data *UserData) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, err := d.read()
	if err != nil {
		return err
	}
	raw, err := encodeUserData(data)
	if err != nil {
		return err
	}
	r.Data = raw
	return d.write(r)
}

// read loads the record. A missing file reads as both keys cleared, and so
// does a file that is not JSON: it is logged and the next write replaces it.
func (d *diskStore) read() (record, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return record{}, nil
		}
		return record{}, fmt.Errorf("failed to read token state: %w", err)
	}
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		logger.WarnWithFields("ignoring corrupt token state", logger.Fields{"path": d.path, "error": err.Error()})
		return record{}, nil
	}
	return r, nil
}

// write marshals r to JSON and writes it atomically via a temp file + os.Rename.
func (d *diskStore) write(r record) (err error) {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to persist token state: %w", err)
	}

	// Write to a temp file in the same directory so os.Rename is atomic.
	tmp, err := os.CreateTemp(filepath.Dir(d.path), "state-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to persist token state: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if err = tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to persist token state: %w", err)
	}
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to persist token state: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to persist token state: %w", err)
	}
	if err = os.Rename(tmpName, d.path); err != nil {
		return fmt.Errorf("failed to persist token state: %w", err)
	}
	return nil
}

func decodeUserData(raw string) (*UserData, error) {
	if raw == "" {
		return nil, ErrNoUserData
	}
	var u UserData
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, &MalformedDataError{Raw: raw, Err: err}
	}
	return &u, nil
}

func encodeUserData(u *UserData) (string, error) {
	if u == nil {
		return "", nil
	}
	b, err := json.Marshal(u)
	if err != nil {
		return "", fmt.Errorf("failed to encode user data: %w", err)
	}
	return string(b), nil
}

// memoryStore keeps the record in process memory.
type memoryStore struct {
	mu  sync.Mutex
	rec record
}

// NewMemoryStore returns a Store that forgets everything when the process exits.
func NewMemoryStore() Store {
	return &memoryStore{}
}

func (m *memoryStore) Token() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec.Token, nil
}

func (m *memoryStore) SetToken(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec.Token = token
	return nil
}

func (m *memoryStore) UserData() (*UserData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return decodeUserData(m.rec.Data)
}

func (m *memoryStore) SetUserData(d *UserData) error {
	raw, err := encodeUserData(d)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec.Data = raw
	return nil
}
