package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetModelsDir(t *testing.T) {
	tests := []struct {
		name           string
		explicitDir    string
		envVar         string
		expectedResult string
	}{
		{
			name:           "explicit directory takes precedence",
			explicitDir:    "/explicit/path",
			envVar:         "/env/path",
			expectedResult: "/explicit/path",
		},
		{
			name:           "environment variable used when no explicit dir",
			envVar:         "/env/path",
			expectedResult: "/env/path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvModelsDir, tt.envVar)
			assert.Equal(t, tt.expectedResult, GetModelsDir(tt.explicitDir))
		})
	}
}

func TestGetModelsDirDefault(t *testing.T) {
	t.Setenv(EnvModelsDir, "")
	dir := GetModelsDir("")
	assert.Equal(t, DefaultModelsDir, filepath.Base(dir))
}

func TestResolveModelPathPrefersOrganized(t *testing.T) {
	base := t.TempDir()
	organized := filepath.Join(base, TypeDetection, VariantNano, DetectorYOLOv8n)
	require.NoError(t, os.MkdirAll(filepath.Dir(organized), 0o755))
	require.NoError(t, os.WriteFile(organized, []byte("onnx"), 0o600))

	assert.Equal(t, organized, GetDetectorModelPath(base, false))
	assert.Equal(t, filepath.Join(base, DetectorYOLOv8s), GetDetectorModelPath(base, true))
}

func TestLabelsAndTessdataPaths(t *testing.T) {
	base := t.TempDir()
	assert.Equal(t, filepath.Join(base, LabelsCOCO), GetLabelsPath(base, LabelsCOCO))

	tess := filepath.Join(base, TypeOCR, TessdataDir)
	require.NoError(t, os.MkdirAll(tess, 0o755))
	assert.Equal(t, tess, GetTessdataDir(base))
}

func TestValidateModelExists(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "m.onnx")
	require.Error(t, ValidateModelExists(path))
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	require.NoError(t, ValidateModelExists(path))
}

func TestListAvailableModels(t *testing.T) {
	list := ListAvailableModels()
	require.Len(t, list, 4)
	for _, m := range list {
		assert.NotEmpty(t, m.Filename, m.Name)
	}
}
