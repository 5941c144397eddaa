package setstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemSetStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewMemSetStore()
	s.Add("threat-words", "hurt", " kill ", "")

	ok, err := s.InSet(ctx, "threat-words", "kill")
	assert.NoError(err)
	assert.True(ok)

	ok, err = s.InSet(ctx, "threat-words", "hug")
	assert.NoError(err)
	assert.False(ok)

	ok, err = s.InSet(ctx, "missing-set", "kill")
	assert.NoError(err)
	assert.False(ok)

	assert.Equal([]string{"hurt", "kill"}, s.Members("threat-words"))
	assert.Nil(s.Members("missing-set"))
	assert.Equal([]string{"threat-words"}, s.Names())
}

func TestLoadFromFileJSON(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	p := filepath.Join(t.TempDir(), "sets.json")
	require.NoError(os.WriteFile(p, []byte(`{"bad-words": ["one", "two"], "empty": []}`), 0644))

	s := NewMemSetStore()
	require.NoError(s.LoadFromFileJSON(p))
	assert.Equal([]string{"one", "two"}, s.Members("bad-words"))
	assert.Equal([]string{}, s.Members("empty"))

	require.NoError(os.WriteFile(p, []byte(`{"bad-words": "one"}`), 0644))
	assert.Error(s.LoadFromFileJSON(p))
}

func TestLoadFromFileCSV(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	dir := t.TempDir()
	p := filepath.Join(dir, "indicators.csv")
	require.NoError(os.WriteFile(p, []byte("note,term\nx,hurt you\ny,find you\n"), 0644))

	s := NewMemSetStore()
	require.NoError(s.LoadFromFileCSV(p, "threat"))
	assert.Equal([]string{"find you", "hurt you"}, s.Members("threat"))

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(os.WriteFile(empty, []byte(""), 0644))
	assert.Error(s.LoadFromFileCSV(empty, "empty"))

	assert.Error(s.LoadFromFileCSV(filepath.Join(dir, "missing.csv"), "missing"))
}
