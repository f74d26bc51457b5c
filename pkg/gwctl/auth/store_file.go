package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/gwctl/gwctl/pkg/gwctl/errdefs"
	"github.com/gwctl/gwctl/pkg/gwctl/fsutil"
)

// FileStore keeps the credential as a plaintext JSON file readable only by the owner.
type FileStore struct {
	Path string
}

func (s *FileStore) Load() (*StoredCredential, error) {
	content, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errdefs.New(errdefs.KindStorage, err)
	}
	var cred StoredCredential
	if err := json.Unmarshal(content, &cred); err != nil {
		return nil, errdefs.New(errdefs.KindStorage, fmt.Errorf("failed to parse %s: %w", s.Path, err))
	}
	return &cred, nil
}

func (s *FileStore) Save(cred *StoredCredential) error {
	if cred == nil || cred.Token == "" {
		return errdefs.Newf(errdefs.KindStorage, "credential has no token")
	}
	content, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return errdefs.New(errdefs.KindStorage, err)
	}
	if err := fsutil.WriteFileAtomic(s.Path, content, 0o600); err != nil {
		return errdefs.New(errdefs.KindStorage, err)
	}
	return nil
}

func (s *FileStore) Clear() (bool, error) {
	removed, err := fsutil.RemoveIfExists(s.Path)
	if err != nil {
		return false, errdefs.New(errdefs.KindStorage, err)
	}
	return removed, nil
}
