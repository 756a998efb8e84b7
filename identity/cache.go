package identity

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const cacheFileName = "provider_cache.json"

// cachedEntry is what the provider cache holds for a signed-in account. It is
// owned by the identity client and kept separate from the token store, which
// only ever sees the backend session.
type cachedEntry struct {
	Account Account       `json:"account"`
	Token   *oauth2.Token `json:"token,omitempty"`
	IDToken string        `json:"id_token,omitempty"`

	// Pending marks an interactive result that has not yet been exchanged
	// with the backend. The marker is cleared once a provider exchange
	// notification is observed.
	Pending bool `json:"pending,omitempty"`

	SavedAt time.Time `json:"saved_at"`
}

type accountCache struct {
	lock sync.Mutex
	path string
}

func newAccountCache(dataFolder string) (*accountCache, error) {
	if err := os.MkdirAll(dataFolder, 0o700); err != nil {
		return nil, errors.Wrap(err, "[newAccountCache] MkdirAll")
	}
	return &accountCache{path: filepath.Join(dataFolder, cacheFileName)}, nil
}

// load returns the cached entry, or nil when none exists or the file cannot
// be read. Cache reads never involve the network.
func (c *accountCache) load() *cachedEntry {
	c.lock.Lock()
	defer c.lock.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil
	}
	var entry cachedEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil
	}
	return &entry
}

func (c *accountCache) save(entry *cachedEntry) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	entry.SavedAt = time.Now()
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return errors.Wrap(err, "[accountCache.save] Marshal")
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, "[accountCache.save] WriteFile")
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return errors.Wrap(err, "[accountCache.save] Rename")
	}
	return nil
}

func (c *accountCache) clear() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[accountCache.clear] Remove")
	}
	return nil
}

// markExchanged clears the pending marker after the backend exchange for an
// interactive result has completed.
func (c *accountCache) markExchanged() {
	entry := c.load()
	if entry == nil || !entry.Pending {
		return
	}
	entry.Pending = false
	_ = c.save(entry)
}

// accountFromIDToken rebuilds an account handle from a cached ID token. The
// token was verified when it was acquired; here the claims are only re-read.
func accountFromIDToken(raw string) (*Account, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, errors.Wrap(err, "[accountFromIDToken] ParseUnverified")
	}

	account := &Account{
		ID:          stringClaim(claims, "oid"),
		Email:       stringClaim(claims, "email"),
		DisplayName: stringClaim(claims, "name"),
		PhotoURL:    stringClaim(claims, "picture"),
		TenantID:    stringClaim(claims, "tid"),
	}
	if account.ID == "" {
		account.ID = stringClaim(claims, "sub")
	}
	if account.Email == "" {
		account.Email = stringClaim(claims, "preferred_username")
	}
	if account.ID == "" {
		return nil, ErrNoAccount
	}
	return account, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	value, _ := claims[key].(string)
	return value
}
