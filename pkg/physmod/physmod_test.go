package physmod

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_MissingLibrary(t *testing.T) {
	lib, err := Open(filepath.Join(t.TempDir(), "missing.so"))
	require.Error(t, err)
	assert.Nil(t, lib)
}

func TestResolvePath(t *testing.T) {
	assert.Equal(t, "/opt/vessel/libvessel.so", ResolvePath("/opt/vessel/libvessel.so"))

	got := ResolvePath("")
	assert.Equal(t, DefaultLibraryName, filepath.Base(got))
}
