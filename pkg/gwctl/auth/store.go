package auth

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/gwctl/gwctl/pkg/gwctl/identity"
)

// StoredCredential is the login result kept between invocations.
type StoredCredential struct {
	Token     string             `json:"token"`
	ExpiresAt *int64             `json:"expires_at,omitempty"`
	User      *identity.UserInfo `json:"user,omitempty"`
}

// CredentialStore persists at most one StoredCredential.
type CredentialStore interface {
	// Load returns nil, nil when nothing is stored.
	Load() (*StoredCredential, error)
	Save(*StoredCredential) error
	// Clear reports whether a credential was removed.
	Clear() (bool, error)
}

// Storage modes accepted by NewStore.
const (
	StorageKeychain = "keychain"
	StorageFile     = "file"
)

const (
	KeyringService = "gwctl"
	KeyringAccount = "user_auth"
	// LegacyFileName is the plaintext credential file of the file mode and of
	// installations that predate keychain storage.
	LegacyFileName = "auth.json"
)

// NewStore returns the credential store for mode rooted at dataDir.
func NewStore(mode, dataDir string, log *zap.SugaredLogger) (CredentialStore, error) {
	legacy := &FileStore{Path: filepath.Join(dataDir, LegacyFileName)}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", StorageKeychain:
		return &MigratingStore{
			Primary: &KeyringStore{Service: KeyringService, Account: KeyringAccount},
			Legacy:  legacy,
			Logger:  log,
		}, nil
	case StorageFile:
		return legacy, nil
	default:
		return nil, fmt.Errorf("unknown token storage %q (expected %s or %s)", mode, StorageKeychain, StorageFile)
	}
}
