package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/islamic-data/internal/model"
)

func newMemStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(afero.NewMemMapFs(), "/data")
}

func TestFileStore_WriteRead(t *testing.T) {
	st := newMemStore(t)

	require.NoError(t, st.Write("surahs", "1", map[string]any{"surah_name": "Al-Fatihah"}))

	ok, err := st.Exists("surahs", "1")
	require.NoError(t, err)
	assert.True(t, ok)

	var got map[string]any
	require.NoError(t, st.Read("surahs", "1", &got))
	assert.Equal(t, "Al-Fatihah", got["surah_name"])
	assert.Equal(t, "/data/surahs/1.json", st.Path("surahs", "1"))
}

func TestFileStore_Overwrite(t *testing.T) {
	st := newMemStore(t)
	require.NoError(t, st.Write("facts", "islam_facts", []string{"a", "b", "c"}))
	require.NoError(t, st.Write("facts", "islam_facts", []string{"x"}))

	var got []string
	require.NoError(t, st.Read("facts", "islam_facts", &got))
	assert.Equal(t, []string{"x"}, got)
}

func TestFileStore_NotFound(t *testing.T) {
	st := newMemStore(t)
	_, err := st.ReadRaw("surahs", "999")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))

	ok, err := st.Exists("surahs", "999")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStore_InvalidKey(t *testing.T) {
	st := newMemStore(t)
	assert.Error(t, st.Write("surahs", "../escape", 1))
	assert.Error(t, st.Write("", "x", 1))
	assert.Error(t, st.Write("a/b", "x", 1))
}

func TestFileStore_ListSkipsTempFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	st := NewFileStore(fs, "/data")
	require.NoError(t, st.Write("names", "2", 1))
	require.NoError(t, st.Write("names", "1", 1))
	require.NoError(t, afero.WriteFile(fs, "/data/names/.1.123.tmp", []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/data/names/readme.txt", []byte("x"), 0o644))

	names, err := st.List("names")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, names)

	names, err = st.List("missing")
	require.NoError(t, err)
	assert.Empty(t, names)

	cats, err := st.Categories()
	require.NoError(t, err)
	assert.Equal(t, []string{"names"}, cats)
}

func TestFileStore_RecordRoundTrip(t *testing.T) {
	st := newMemStore(t)
	rec := model.Record{
		ID:       "Egypt",
		Category: "qibla",
		Status:   model.StatusComplete,
		Sources:  []string{"qibla"},
		Fields:   map[string]any{"qibla_dir": 136.1},
	}
	require.NoError(t, st.WriteRecord(rec))

	got, err := st.ReadRecord("qibla", "Egypt")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, model.StatusComplete, got.Status)
	assert.InDelta(t, 136.1, got.Fields["qibla_dir"], 1e-9)
}

func TestFileStore_ConcurrentWritesSameKey(t *testing.T) {
	st := newMemStore(t)
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, st.Write("manners", "1", map[string]int{"writer": i}))
		}()
	}
	wg.Wait()

	var got map[string]int
	require.NoError(t, st.Read("manners", "1", &got))
	assert.Contains(t, got, "writer")
}

func TestFileStore_LoadAll(t *testing.T) {
	st := newMemStore(t)
	for i := 1; i <= 10; i++ {
		require.NoError(t, st.Write("surahs", fmt.Sprint(i), map[string]int{"id": i}))
	}

	docs, err := st.LoadAll(context.Background(), "surahs", 3)
	require.NoError(t, err)
	require.Len(t, docs, 10)

	var doc map[string]int
	require.NoError(t, json.Unmarshal(docs["7"], &doc))
	assert.Equal(t, 7, doc["id"])
}

func TestFileStore_LoadAllInvalidJSON(t *testing.T) {
	st := newMemStore(t)
	require.NoError(t, st.WriteRaw("surahs", "1", []byte("{oops")))
	_, err := st.LoadAll(context.Background(), "surahs", 2)
	require.Error(t, err)
}
