package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/gwctl/gwctl/pkg/gwctl/errdefs"
)

const instanceKeyPrefix = "instance-key:"

// InstanceKeyStore keeps per-instance encryption keys in the OS keychain,
// one entry per registry id.
type InstanceKeyStore struct {
	Service string
}

func (s *InstanceKeyStore) service() string {
	if s.Service == "" {
		return KeyringService
	}
	return s.Service
}

// Account is the keychain account used for an instance id.
func (s *InstanceKeyStore) Account(id string) string {
	return instanceKeyPrefix + id
}

// Save stores key for id. The key must be standard base64.
func (s *InstanceKeyStore) Save(id, key string) error {
	key = strings.TrimSpace(key)
	if id == "" {
		return errdefs.Newf(errdefs.KindStorage, "instance id is empty")
	}
	if key == "" {
		return errdefs.Newf(errdefs.KindStorage, "encryption key is empty")
	}
	if _, err := base64.StdEncoding.DecodeString(key); err != nil {
		return errdefs.New(errdefs.KindStorage, fmt.Errorf("encryption key is not valid base64: %w", err))
	}
	if err := keyring.Set(s.service(), s.Account(id), key); err != nil {
		return errdefs.New(errdefs.KindStorage, fmt.Errorf("write keychain: %w", err))
	}
	return nil
}

// Load returns the key for id and whether one was stored.
func (s *InstanceKeyStore) Load(id string) (string, bool, error) {
	key, err := keyring.Get(s.service(), s.Account(id))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", false, nil
		}
		return "", false, errdefs.New(errdefs.KindStorage, fmt.Errorf("read keychain: %w", err))
	}
	return key, true, nil
}

// Delete removes the key for id and reports whether one existed.
func (s *InstanceKeyStore) Delete(id string) (bool, error) {
	if err := keyring.Delete(s.service(), s.Account(id)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return false, nil
		}
		return false, errdefs.New(errdefs.KindStorage, fmt.Errorf("delete keychain entry: %w", err))
	}
	return true, nil
}
