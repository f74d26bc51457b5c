package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/gwctl/gwctl/pkg/gwctl/errdefs"
)

// KeyringStore keeps the credential as JSON in the OS keychain.
type KeyringStore struct {
	Service string
	Account string
}

func (s *KeyringStore) Load() (*StoredCredential, error) {
	secret, err := keyring.Get(s.Service, s.Account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, errdefs.New(errdefs.KindStorage, fmt.Errorf("read keychain: %w", err))
	}
	var cred StoredCredential
	if err := json.Unmarshal([]byte(secret), &cred); err != nil {
		return nil, errdefs.New(errdefs.KindStorage, fmt.Errorf("decode keychain entry: %w", err))
	}
	return &cred, nil
}

func (s *KeyringStore) Save(cred *StoredCredential) error {
	if cred == nil || cred.Token == "" {
		return errdefs.Newf(errdefs.KindStorage, "credential has no token")
	}
	data, err := json.Marshal(cred)
	if err != nil {
		return errdefs.New(errdefs.KindStorage, err)
	}
	if err := keyring.Set(s.Service, s.Account, string(data)); err != nil {
		return errdefs.New(errdefs.KindStorage, fmt.Errorf("write keychain: %w", err))
	}
	return nil
}

func (s *KeyringStore) Clear() (bool, error) {
	if err := keyring.Delete(s.Service, s.Account); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return false, nil
		}
		return false, errdefs.New(errdefs.KindStorage, fmt.Errorf("delete keychain entry: %w", err))
	}
	return true, nil
}
