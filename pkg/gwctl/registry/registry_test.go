package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	return &Registry{Path: filepath.Join(t.TempDir(), "instances.json")}
}

func TestDeriveID(t *testing.T) {
	a := DeriveID("127.0.0.1", 8081, "local")
	assert.Len(t, a, 8)
	assert.Equal(t, a, DeriveID("127.0.0.1", 8081, "local"))
	assert.NotEqual(t, a, DeriveID("127.0.0.1", 8082, "local"))
	assert.NotEqual(t, a, DeriveID("127.0.0.1", 8081, "other"))
}

func TestLoadMissingFile(t *testing.T) {
	list, err := newRegistry(t).Load()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAddUpserts(t *testing.T) {
	r := newRegistry(t)

	first, err := r.Add(Instance{IP: "10.0.0.1", Port: 8081, Label: "edge"})
	require.NoError(t, err)
	assert.Equal(t, DeriveID("10.0.0.1", 8081, "edge"), first.ID)
	assert.Equal(t, DefaultPathPrefix, first.PathPrefix)

	// same label: address moves, id stays
	moved, err := r.Add(Instance{IP: "10.0.0.2", Port: 9000, Label: "edge", PathPrefix: "/mgmt/"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, moved.ID)
	assert.Equal(t, "mgmt", moved.PathPrefix)

	// same address: label changes, id stays
	relabeled, err := r.Add(Instance{IP: "10.0.0.2", Port: 9000, Label: "edge-2"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, relabeled.ID)

	_, err = r.Add(Instance{IP: "10.0.0.3", Port: 9000, Label: "core"})
	require.NoError(t, err)

	list, err := r.Load()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "edge-2", list[0].Label)
	assert.Equal(t, "10.0.0.2:9000", list[0].Address())
	assert.Equal(t, "core", list[1].Label)
}

func TestAddValidates(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Add(Instance{Port: 1, Label: "x"})
	require.Error(t, err)
	_, err = r.Add(Instance{IP: "1.1.1.1", Label: "x"})
	require.Error(t, err)
	_, err = r.Add(Instance{IP: "1.1.1.1", Port: 1})
	require.Error(t, err)
}

func TestLoadBackfillsIDs(t *testing.T) {
	r := newRegistry(t)
	require.NoError(t, os.WriteFile(r.Path, []byte(`[{"ip":"127.0.0.1","port":8081,"label":"local"}]`), 0o600))

	list, err := r.Load()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, DeriveID("127.0.0.1", 8081, "local"), list[0].ID)
	assert.Equal(t, DefaultPathPrefix, list[0].PathPrefix)

	raw, err := os.ReadFile(r.Path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), list[0].ID, "backfill is persisted")
}

func TestRemove(t *testing.T) {
	r := newRegistry(t)
	a, err := r.Add(Instance{IP: "10.0.0.1", Port: 1, Label: "a"})
	require.NoError(t, err)
	_, err = r.Add(Instance{IP: "10.0.0.2", Port: 2, Label: "b"})
	require.NoError(t, err)
	_, err = r.Add(Instance{IP: "10.0.0.3", Port: 3, Label: "c"})
	require.NoError(t, err)

	removed, err := r.RemoveByID(a.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = r.RemoveByLabel("b")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = r.RemoveByAddr("10.0.0.3", 3)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = r.RemoveByLabel("missing")
	require.NoError(t, err)
	assert.False(t, removed)

	list, err := r.Load()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLoadCorrupt(t *testing.T) {
	r := newRegistry(t)
	require.NoError(t, os.WriteFile(r.Path, []byte("{"), 0o600))
	_, err := r.Load()
	require.Error(t, err)
}

func TestAddDefaultsLabelToAddress(t *testing.T) {
	inst, err := newRegistry(t).Add(Instance{IP: "10.0.0.9", Port: 8081})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9:8081", inst.Label)
	assert.Equal(t, DeriveID("10.0.0.9", 8081, "10.0.0.9:8081"), inst.ID)
}

func TestInstanceURLs(t *testing.T) {
	inst := Instance{IP: "10.0.0.1", Port: 8081, PathPrefix: "/admin/"}
	assert.Equal(t, "http://10.0.0.1:8081/admin", inst.BaseURL())
	assert.Equal(t, "http://10.0.0.1:8081/api/reload", inst.ReloadURL())

	inst.PathPrefix = ""
	assert.Equal(t, "http://10.0.0.1:8081", inst.BaseURL())
}

func TestFindAndResolve(t *testing.T) {
	r := newRegistry(t)
	edge, err := r.Add(Instance{IP: "10.0.0.1", Port: 1, Label: "edge"})
	require.NoError(t, err)
	core, err := r.Add(Instance{IP: "10.0.0.2", Port: 2, Label: "core"})
	require.NoError(t, err)

	got, err := r.Find(edge.ID)
	require.NoError(t, err)
	assert.Equal(t, edge, got)

	got, err = r.Find("core")
	require.NoError(t, err)
	assert.Equal(t, core, got)

	_, err = r.Find("nope")
	assert.ErrorIs(t, err, ErrNoInstance)

	got, err = r.Resolve(core.ID, "")
	require.NoError(t, err)
	assert.Equal(t, core, got)

	got, err = r.Resolve("", "edge")
	require.NoError(t, err)
	assert.Equal(t, edge, got)

	_, err = r.Resolve("deadbeef", "")
	assert.ErrorIs(t, err, ErrNoInstance)
	assert.Contains(t, err.Error(), `no instance with id "deadbeef"`)

	_, err = r.Resolve("", "")
	require.Error(t, err)
}
