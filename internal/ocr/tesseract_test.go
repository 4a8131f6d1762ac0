package ocr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTesseractInitVariables(t *testing.T) {
	vars := DefaultTesseractConfig().initVariables()
	assert.Equal(t, map[string]string{"load_system_dawg": "F", "load_freq_dawg": "F"}, vars)

	assert.Empty(t, TesseractConfig{}.initVariables())
}

func TestWriteInitConfig(t *testing.T) {
	dir := t.TempDir()
	path, err := writeInitConfig(dir, DefaultTesseractConfig().initVariables())
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "load_freq_dawg F\nload_system_dawg F\n", string(data))

	path, err = writeInitConfig(dir, nil)
	require.NoError(t, err)
	assert.Empty(t, path, "no file when nothing needs setting at init")

	_, err = writeInitConfig(filepath.Join(dir, "missing"), map[string]string{"a": "1"})
	require.Error(t, err)
}

func TestNewTesseractUnavailable(t *testing.T) {
	_, err := NewTesseract(TesseractConfig{
		TessdataPrefix: t.TempDir(),
		Languages:      []string{"zzz"},
	})
	require.ErrorIs(t, err, ErrEngineUnavailable)
}
