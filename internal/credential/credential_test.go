// ABOUTME: Tests for token resolution order and keyring writes
// ABOUTME: Uses the in-memory array keyring and a temp token file

package credential

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, env string, items []keyring.Item, fileContent string) *Store {
	t.Helper()
	var file string
	if fileContent != "" {
		file = filepath.Join(t.TempDir(), "token")
		require.NoError(t, os.WriteFile(file, []byte(fileContent), 0o600))
	}
	s := NewStore(keyring.NewArrayKeyring(items), file)
	s.getenv = func(k string) string {
		if k == EnvToken {
			return env
		}
		return ""
	}
	return s
}

func TestResolve_Order(t *testing.T) {
	ringItems := []keyring.Item{{Key: TokenKey, Data: []byte("from-ring")}}

	tests := []struct {
		name    string
		env     string
		items   []keyring.Item
		file    string
		want    string
		wantSrc Source
	}{
		{"env wins", " from-env ", ringItems, "from-file", "from-env", SourceEnv},
		{"keyring before file", "", ringItems, "from-file", "from-ring", SourceKeyring},
		{"file last", "", nil, "from-file\n", "from-file", SourceFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, tt.env, tt.items, tt.file)
			tok, src, err := s.Resolve()
			require.NoError(t, err)
			assert.Equal(t, tt.want, tok)
			assert.Equal(t, tt.wantSrc, src)
		})
	}
}

func TestResolve_NoToken(t *testing.T) {
	s := newTestStore(t, "", nil, "")
	_, _, err := s.Resolve()
	assert.ErrorIs(t, err, ErrNoToken)

	s = NewStore(nil, filepath.Join(t.TempDir(), "missing"))
	s.getenv = func(string) string { return "" }
	_, _, err = s.Resolve()
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestSetAndDelete(t *testing.T) {
	s := newTestStore(t, "", nil, "")

	require.NoError(t, s.Set("  abc  "))
	tok, src, err := s.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
	assert.Equal(t, SourceKeyring, src)

	require.NoError(t, s.Delete())
	require.NoError(t, s.Delete())

	_, _, err = s.Resolve()
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestSet_Rejects(t *testing.T) {
	s := newTestStore(t, "", nil, "")
	assert.Error(t, s.Set("   "))

	noRing := NewStore(nil, "")
	assert.Error(t, noRing.Set("abc"))
	assert.NoError(t, noRing.Delete())
}

func TestDefaultDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	assert.Equal(t, filepath.Join("/tmp/xdg", "house-notify"), DefaultDir())
}
