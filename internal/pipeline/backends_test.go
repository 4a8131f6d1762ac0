package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackends_UnknownNames(t *testing.T) {
	cfg := DefaultBackendConfig()
	cfg.Detector = "sonar"
	_, err := OpenBackends(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sonar")

	cfg = DefaultBackendConfig()
	cfg.Detector = BackendNone
	cfg.OCR = "braille"
	_, err = OpenBackends(context.Background(), cfg)
	require.Error(t, err)
}

func TestOpenBackends_None(t *testing.T) {
	cfg := BackendConfig{Detector: BackendNone, OCR: BackendNone}
	b, err := OpenBackends(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, b.Detector)
	assert.Nil(t, b.OCR)
	require.NoError(t, b.Close())
}

func TestOpenBackends_MissingModelDegrades(t *testing.T) {
	cfg := DefaultBackendConfig()
	cfg.OCR = BackendNone
	cfg.YOLO.ModelPath = filepath.Join(t.TempDir(), "missing.onnx")

	b, err := OpenBackends(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, b.Detector)
	assert.Empty(t, b.Closers)

	p, err := b.Apply(NewBuilder()).Build()
	require.NoError(t, err)
	img, _ := shelf()
	res, err := p.Identify(context.Background(), img)
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	require.NoError(t, p.Close())
}
