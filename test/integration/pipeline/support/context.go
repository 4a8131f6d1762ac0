// Package support holds the step definitions of the pipeline feature suite.
package support

import (
	"context"
	"image"

	"github.com/MeKo-Tech/brandscan/internal/pipeline"
	"github.com/MeKo-Tech/brandscan/internal/testutil"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	Shelf    testutil.ShelfConfig
	Image    image.Image
	Detector *testutil.FakeDetector
	Engine   *testutil.FakeEngine

	Cancelled  bool
	LastResult *pipeline.Result
	LastError  error
}

// NewTestContext returns an empty scenario context.
func NewTestContext() *TestContext {
	return &TestContext{
		Detector: &testutil.FakeDetector{},
		Engine:   &testutil.FakeEngine{},
	}
}

// Reset clears scenario state.
func (testCtx *TestContext) Reset() {
	*testCtx = *NewTestContext()
}

func (testCtx *TestContext) run() error {
	p, err := pipeline.NewBuilder().
		WithObjectDetector(testCtx.Detector).
		WithOCREngine(testCtx.Engine).
		WithWorkers(2).
		Build()
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if testCtx.Cancelled {
		cancel()
	}
	testCtx.LastResult, testCtx.LastError = p.Identify(ctx, testCtx.Image)
	return nil
}
