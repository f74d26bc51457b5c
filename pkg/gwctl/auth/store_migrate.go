package auth

import (
	"go.uber.org/zap"

	"github.com/gwctl/gwctl/pkg/gwctl/logging"
)

// MigratingStore reads from Primary and moves a credential found only in
// Legacy into Primary. Writes and clears always remove the legacy copy.
type MigratingStore struct {
	Primary CredentialStore
	Legacy  CredentialStore
	Logger  *zap.SugaredLogger
}

func (s *MigratingStore) Load() (*StoredCredential, error) {
	log := logging.OrNop(s.Logger)
	cred, err := s.Primary.Load()
	if err != nil {
		log.Debugw("Secure storage unavailable, trying legacy file", "error", err)
	} else if cred != nil {
		return cred, nil
	}

	legacy, legacyErr := s.Legacy.Load()
	if legacyErr != nil {
		return nil, legacyErr
	}
	if legacy == nil {
		return nil, nil
	}
	if saveErr := s.Primary.Save(legacy); saveErr != nil {
		log.Warnw("Failed to migrate credential to secure storage, keeping legacy file", "error", saveErr)
		return legacy, nil
	}
	if _, clearErr := s.Legacy.Clear(); clearErr != nil {
		log.Warnw("Migrated credential but could not remove legacy file", "error", clearErr)
	} else {
		log.Infow("Migrated credential from plaintext file to secure storage")
	}
	return legacy, nil
}

func (s *MigratingStore) Save(cred *StoredCredential) error {
	if err := s.Primary.Save(cred); err != nil {
		return err
	}
	if _, err := s.Legacy.Clear(); err != nil {
		logging.OrNop(s.Logger).Warnw("Could not remove legacy credential file", "error", err)
	}
	return nil
}

func (s *MigratingStore) Clear() (bool, error) {
	primary, err := s.Primary.Clear()
	if err != nil {
		logging.OrNop(s.Logger).Debugw("Could not clear secure storage", "error", err)
	}
	legacy, legacyErr := s.Legacy.Clear()
	if legacyErr != nil {
		return primary, legacyErr
	}
	return primary || legacy, nil
}
