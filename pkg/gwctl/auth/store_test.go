package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
	"go.uber.org/zap/zaptest"

	"github.com/gwctl/gwctl/pkg/gwctl/identity"
)

func sampleCredential() *StoredCredential {
	exp := int64(1_800_000_000)
	return &StoredCredential{
		Token:     "eyJ.header.sig",
		ExpiresAt: &exp,
		User:      &identity.UserInfo{ID: "u1", Email: "ops@example.com", Name: "Ops"},
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := &FileStore{Path: filepath.Join(t.TempDir(), "nested", LegacyFileName)}

	cred, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, cred)

	require.NoError(t, store.Save(sampleCredential()))
	info, err := os.Stat(store.Path)
	require.NoError(t, err)
	if info.Mode().Perm()&0o077 != 0 && os.PathSeparator == '/' {
		t.Fatalf("credential file is group/world readable: %v", info.Mode())
	}

	cred, err = store.Load()
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "eyJ.header.sig", cred.Token)
	require.NotNil(t, cred.ExpiresAt)
	assert.Equal(t, int64(1_800_000_000), *cred.ExpiresAt)
	assert.Equal(t, "u1", cred.User.ID)

	removed, err := store.Clear()
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = store.Clear()
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestFileStoreRejectsEmptyToken(t *testing.T) {
	store := &FileStore{Path: filepath.Join(t.TempDir(), LegacyFileName)}
	require.Error(t, store.Save(&StoredCredential{}))
	require.Error(t, store.Save(nil))
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), LegacyFileName)
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err := (&FileStore{Path: path}).Load()
	require.Error(t, err)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()
	store := &KeyringStore{Service: KeyringService, Account: KeyringAccount}

	cred, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, cred)

	require.NoError(t, store.Save(sampleCredential()))
	cred, err = store.Load()
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "eyJ.header.sig", cred.Token)

	removed, err := store.Clear()
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = store.Clear()
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestMigratingStoreMovesLegacyCredential(t *testing.T) {
	keyring.MockInit()
	dir := t.TempDir()
	legacy := &FileStore{Path: filepath.Join(dir, LegacyFileName)}
	require.NoError(t, legacy.Save(sampleCredential()))

	primary := &KeyringStore{Service: KeyringService, Account: KeyringAccount}
	store := &MigratingStore{Primary: primary, Legacy: legacy, Logger: zaptest.NewLogger(t).Sugar()}

	cred, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "eyJ.header.sig", cred.Token)

	_, err = os.Stat(legacy.Path)
	assert.True(t, os.IsNotExist(err), "legacy file removed after migration")

	fromKeyring, err := primary.Load()
	require.NoError(t, err)
	require.NotNil(t, fromKeyring)
	assert.Equal(t, cred.Token, fromKeyring.Token)
}

func TestMigratingStoreKeepsLegacyWhenPrimaryFails(t *testing.T) {
	keyring.MockInitWithError(assert.AnError)
	dir := t.TempDir()
	legacy := &FileStore{Path: filepath.Join(dir, LegacyFileName)}
	require.NoError(t, legacy.Save(sampleCredential()))

	store := &MigratingStore{Primary: &KeyringStore{Service: KeyringService, Account: KeyringAccount}, Legacy: legacy}
	cred, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, cred)

	_, err = os.Stat(legacy.Path)
	require.NoError(t, err, "legacy file kept when migration fails")

	require.Error(t, store.Save(sampleCredential()))
}

func TestMigratingStoreSaveAndClearRemoveLegacy(t *testing.T) {
	keyring.MockInit()
	dir := t.TempDir()
	legacy := &FileStore{Path: filepath.Join(dir, LegacyFileName)}
	store := &MigratingStore{Primary: &KeyringStore{Service: KeyringService, Account: KeyringAccount}, Legacy: legacy}

	require.NoError(t, legacy.Save(sampleCredential()))
	require.NoError(t, store.Save(sampleCredential()))
	_, err := os.Stat(legacy.Path)
	assert.True(t, os.IsNotExist(err))

	removed, err := store.Clear()
	require.NoError(t, err)
	assert.True(t, removed)

	cred, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestNewStore(t *testing.T) {
	dir := t.TempDir()

	s, err := NewStore("", dir, nil)
	require.NoError(t, err)
	assert.IsType(t, &MigratingStore{}, s)

	s, err = NewStore("FILE", dir, nil)
	require.NoError(t, err)
	fs, ok := s.(*FileStore)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, LegacyFileName), fs.Path)

	_, err = NewStore("vault", dir, nil)
	require.Error(t, err)
}
