package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBackendsRoundTrip(t *testing.T) {
	dir := t.TempDir()

	leveldb, err := NewLevelDB(filepath.Join(dir, "leveldb"))
	require.NoError(t, err)
	boltdb, err := NewBoltDB(filepath.Join(dir, "state.bolt"))
	require.NoError(t, err)

	backends := map[string]Database{
		"mem":     NewMemDB(),
		"leveldb": leveldb,
		"bolt":    boltdb,
	}

	for name, db := range backends {
		t.Run(name, func(t *testing.T) {
			missing, err := db.Get([]byte("absent"))
			require.NoError(t, err)
			require.Nil(t, missing, "missing keys must read as nil, not error")

			require.NoError(t, db.Put([]byte("loan/1"), []byte("v1")))
			got, err := db.Get([]byte("loan/1"))
			require.NoError(t, err)
			require.Equal(t, []byte("v1"), got)

			require.NoError(t, db.Put([]byte("loan/1"), []byte("v2")))
			got, err = db.Get([]byte("loan/1"))
			require.NoError(t, err)
			require.Equal(t, []byte("v2"), got, "second put must overwrite")
		})
	}

	for _, db := range backends {
		require.NoError(t, db.Close())
	}
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	value := []byte("original")
	require.NoError(t, db.Put([]byte("k"), value))
	value[0] = 'X'

	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("original"), got, "stored value must not alias caller buffer")
}
