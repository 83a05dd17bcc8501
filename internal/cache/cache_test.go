package cache_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	css "github.com/Discord-CSS-Datamining/discord-css-differ"
	"github.com/Discord-CSS-Datamining/discord-css-differ/internal/cache"
)

func openDir(t *testing.T) *cache.Dir {
	t.Helper()
	d, err := cache.Open(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

// Ensure a stored tree is returned for the same source only.
func TestDir_PutGet(t *testing.T) {
	d := openDir(t)
	src := []byte(`.a > .b { x: y } @media print { .c { z: w } } @import "x.css";`)

	ss, hit, err := d.Get(src)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, ss)

	want, err := css.ParseString(string(src))
	require.NoError(t, err)
	require.NoError(t, d.Put(src, want))

	got, hit, err := d.Get(src)
	require.NoError(t, err)
	require.True(t, hit)
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("cached tree mismatch (-want +got):\n%s", diff)
	}

	_, hit, err = d.Get(append(src, ' '))
	require.NoError(t, err)
	assert.False(t, hit)
}

// Ensure no temporary files are left behind.
func TestDir_Put_Atomic(t *testing.T) {
	d := openDir(t)
	ss, err := css.ParseString(`.a {}`)
	require.NoError(t, err)
	require.NoError(t, d.Put([]byte(`.a {}`), ss))
	require.NoError(t, d.Put([]byte(`.a {}`), ss))

	entries, err := os.ReadDir(d.Path())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Regexp(t, `^[0-9a-f]{64}\.cbor\.zst$`, entries[0].Name())
}

// Ensure damaged entries are reported rather than returned.
func TestDir_Get_Corrupt(t *testing.T) {
	d := openDir(t)
	src := []byte(`.a {}`)
	ss, err := css.ParseString(string(src))
	require.NoError(t, err)
	require.NoError(t, d.Put(src, ss))

	entries, err := os.ReadDir(d.Path())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	name := filepath.Join(d.Path(), entries[0].Name())

	for _, data := range [][]byte{
		[]byte("garbage"),
		append(append([]byte{}, cache.MagicHeader...), 0x01, 0x02, 0x03),
	} {
		require.NoError(t, os.WriteFile(name, data, 0o644))
		_, hit, err := d.Get(src)
		assert.False(t, hit)
		assert.True(t, errors.Is(err, cache.ErrCorrupt), "got %v", err)
	}
}
