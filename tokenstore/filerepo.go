package tokenstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Dynpro/NextBI/users"
	"github.com/pkg/errors"
)

const sessionFileName = "session.json"

// FileRepo is a file-backed Repo that survives process restarts. The session
// is a single JSON document so token and user are replaced as one unit: writes
// go to a temporary file which is then renamed over the previous one.
type FileRepo struct {
	lock sync.RWMutex
	path string
}

var _ Repo = (*FileRepo)(nil)

// NewFileRepo creates a FileRepo rooted at dataFolder, creating the folder
// with owner-only permissions when it does not exist.
func NewFileRepo(dataFolder string) (*FileRepo, error) {
	if err := os.MkdirAll(dataFolder, 0o700); err != nil {
		return nil, errors.Wrap(err, "[NewFileRepo] MkdirAll")
	}
	return &FileRepo{path: filepath.Join(dataFolder, sessionFileName)}, nil
}

func (fr *FileRepo) Get() (*Session, error) {
	fr.lock.RLock()
	defer fr.lock.RUnlock()

	data, err := os.ReadFile(fr.path)
	if os.IsNotExist(err) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, errors.Wrap(err, "[FileRepo.Get] ReadFile")
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, errors.Wrap(err, "[FileRepo.Get] Unmarshal")
	}

	// A hand-edited or truncated file can break the token/user pairing.
	// Treat that the same as having no session at all.
	if session.Token == "" || session.User == nil {
		return nil, ErrNoSession
	}
	return &session, nil
}

func (fr *FileRepo) Set(token string, user *users.User, method Method) error {
	fr.lock.Lock()
	defer fr.lock.Unlock()

	data, err := json.MarshalIndent(&Session{
		Token:     token,
		User:      user,
		Method:    method,
		CreatedAt: time.Now(),
	}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "[FileRepo.Set] Marshal")
	}

	tmp := fr.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, "[FileRepo.Set] WriteFile")
	}
	if err := os.Rename(tmp, fr.path); err != nil {
		return errors.Wrap(err, "[FileRepo.Set] Rename")
	}
	return nil
}

func (fr *FileRepo) Clear() error {
	fr.lock.Lock()
	defer fr.lock.Unlock()

	if err := os.Remove(fr.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[FileRepo.Clear] Remove")
	}
	return nil
}
