package support

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/brandscan/internal/detector"
	"github.com/MeKo-Tech/brandscan/internal/pipeline"
	"github.com/MeKo-Tech/brandscan/internal/testutil"
	"github.com/MeKo-Tech/brandscan/internal/utils"
)

// RegisterSteps binds every step definition to sc.
func (testCtx *TestContext) RegisterSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a synthetic shelf image with (\d+) products$`, testCtx.aSyntheticShelfImage)

	sc.Step(`^the detector reports every product as "([^"]*)" with score ([\d.]+)$`, testCtx.detectorReportsEvery)
	sc.Step(`^the detector reports the first product as "([^"]*)" with score ([\d.]+)$`, testCtx.detectorReportsFirst)
	sc.Step(`^the detector reports "([^"]*)" at ([\d,]+) with score ([\d.]+)$`, testCtx.detectorReportsAt)
	sc.Step(`^the detector reports no products$`, testCtx.detectorReportsNothing)
	sc.Step(`^the detector returns an error$`, testCtx.detectorFails)
	sc.Step(`^the detector panics$`, testCtx.detectorPanics)

	sc.Step(`^the OCR engine reads "([^"]*)"$`, testCtx.engineReads)
	sc.Step(`^the OCR engine fails$`, testCtx.engineFails)

	sc.Step(`^I identify the image$`, testCtx.iIdentifyTheImage)
	sc.Step(`^I identify the image with a cancelled context$`, testCtx.iIdentifyCancelled)

	sc.Step(`^the pipeline should succeed$`, testCtx.pipelineShouldSucceed)
	sc.Step(`^the pipeline should fail with "([^"]*)"$`, testCtx.pipelineShouldFail)
	sc.Step(`^the result should contain (\d+) products$`, testCtx.resultShouldContain)
	sc.Step(`^every product should be identified as "([^"]*)"$`, testCtx.everyProductIdentifiedAs)
	sc.Step(`^every product should be labeled "([^"]*)"$`, testCtx.everyProductLabeled)
	sc.Step(`^every product confidence should be above ([\d.]+)$`, testCtx.everyConfidenceAbove)
	sc.Step(`^the trace should be the full state sequence$`, testCtx.traceShouldBeFull)
	sc.Step(`^the trace should be "([^"]*)"$`, testCtx.traceShouldBe)
	sc.Step(`^the OCR engine should not have been called$`, testCtx.engineNotCalled)
	sc.Step(`^the only product should cover the whole image$`, testCtx.onlyProductCoversImage)
	sc.Step(`^the only product should have generic class "([^"]*)"$`, testCtx.onlyProductClass)
	sc.Step(`^the result should be marked as fallback$`, testCtx.resultIsFallback)
}

func (testCtx *TestContext) aSyntheticShelfImage(n int) error {
	cfg := testutil.DefaultShelfConfig()
	if n > len(cfg.Items) {
		return fmt.Errorf("default shelf has only %d products", len(cfg.Items))
	}
	cfg.Items = cfg.Items[:n]
	testCtx.Shelf = cfg
	testCtx.Image = testutil.GenerateShelfImage(cfg)
	return nil
}

func (testCtx *TestContext) detectorReportsEvery(label string, score float64) error {
	testCtx.Detector = testutil.NewFakeDetectorFromItems(testCtx.Shelf.Items, label, score)
	return nil
}

func (testCtx *TestContext) detectorReportsFirst(label string, score float64) error {
	testCtx.Detector = testutil.NewFakeDetectorFromItems(testCtx.Shelf.Items[:1], label, score)
	return nil
}

func (testCtx *TestContext) detectorReportsAt(label, coords string, score float64) error {
	parts := strings.Split(coords, ",")
	if len(parts) != 4 {
		return fmt.Errorf("expected x1,y1,x2,y2, got %q", coords)
	}
	var v [4]float64
	for i, p := range parts {
		n, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return fmt.Errorf("invalid coordinate %q: %w", p, err)
		}
		v[i] = n
	}
	testCtx.Detector.Detections = append(testCtx.Detector.Detections, detector.Detection{
		Box:   utils.NewBox(v[0], v[1], v[2], v[3]),
		Label: label,
		Score: score,
	})
	return nil
}

func (testCtx *TestContext) detectorReportsNothing() error {
	testCtx.Detector = &testutil.FakeDetector{}
	return nil
}

func (testCtx *TestContext) detectorFails() error {
	testCtx.Detector = &testutil.FakeDetector{Err: testutil.ErrFakeUnavailable}
	return nil
}

func (testCtx *TestContext) detectorPanics() error {
	testCtx.Detector = &testutil.FakeDetector{Panic: true}
	return nil
}

func (testCtx *TestContext) engineReads(text string) error {
	testCtx.Engine = testutil.NewStaticEngine(text)
	return nil
}

func (testCtx *TestContext) engineFails() error {
	testCtx.Engine = testutil.NewFailingEngine()
	return nil
}

func (testCtx *TestContext) iIdentifyTheImage() error {
	return testCtx.run()
}

func (testCtx *TestContext) iIdentifyCancelled() error {
	testCtx.Cancelled = true
	return testCtx.run()
}

func (testCtx *TestContext) pipelineShouldSucceed() error {
	if testCtx.LastError != nil {
		return fmt.Errorf("expected success, got error: %w", testCtx.LastError)
	}
	return pipeline.ValidateResult(testCtx.LastResult)
}

func (testCtx *TestContext) pipelineShouldFail(substr string) error {
	if testCtx.LastError == nil {
		return errors.New("expected an error, pipeline succeeded")
	}
	if !strings.Contains(testCtx.LastError.Error(), substr) {
		return fmt.Errorf("error %q does not contain %q", testCtx.LastError, substr)
	}
	return nil
}

func (testCtx *TestContext) result() (*pipeline.Result, error) {
	if testCtx.LastError != nil {
		return nil, fmt.Errorf("pipeline failed: %w", testCtx.LastError)
	}
	if testCtx.LastResult == nil {
		return nil, errors.New("no result recorded")
	}
	return testCtx.LastResult, nil
}

func (testCtx *TestContext) resultShouldContain(n int) error {
	res, err := testCtx.result()
	if err != nil {
		return err
	}
	if res.Products == nil {
		return errors.New("products must be an empty list, not nil")
	}
	if len(res.Products) != n {
		return fmt.Errorf("expected %d products, got %d", n, len(res.Products))
	}
	return nil
}

func (testCtx *TestContext) everyProduct(check func(pipeline.ProductResult) error) error {
	res, err := testCtx.result()
	if err != nil {
		return err
	}
	for i, prod := range res.Products {
		if err := check(prod); err != nil {
			return fmt.Errorf("product %d: %w", i, err)
		}
	}
	return nil
}

func (testCtx *TestContext) everyProductIdentifiedAs(brand string) error {
	return testCtx.everyProduct(func(p pipeline.ProductResult) error {
		if !p.Identified || p.Brand != brand {
			return fmt.Errorf("expected identified %q, got %q (identified=%v)", brand, p.Brand, p.Identified)
		}
		return nil
	})
}

func (testCtx *TestContext) everyProductLabeled(label string) error {
	return testCtx.everyProduct(func(p pipeline.ProductResult) error {
		if p.Brand != label {
			return fmt.Errorf("expected label %q, got %q", label, p.Brand)
		}
		if p.Identified {
			return errors.New("fallback label must not be marked identified")
		}
		return nil
	})
}

func (testCtx *TestContext) everyConfidenceAbove(threshold float64) error {
	return testCtx.everyProduct(func(p pipeline.ProductResult) error {
		if p.Confidence <= threshold {
			return fmt.Errorf("confidence %.3f not above %.3f", p.Confidence, threshold)
		}
		return nil
	})
}

func (testCtx *TestContext) traceShouldBeFull() error {
	res, err := testCtx.result()
	if err != nil {
		return err
	}
	return compareTrace(pipeline.FullTrace, res.Trace)
}

func (testCtx *TestContext) traceShouldBe(list string) error {
	res, err := testCtx.result()
	if err != nil {
		return err
	}
	var want []pipeline.State
	for _, s := range strings.Split(list, ",") {
		want = append(want, pipeline.State(strings.TrimSpace(s)))
	}
	return compareTrace(want, res.Trace)
}

func compareTrace(want, got []pipeline.State) error {
	if len(want) != len(got) {
		return fmt.Errorf("expected trace %v, got %v", want, got)
	}
	for i := range want {
		if want[i] != got[i] {
			return fmt.Errorf("expected trace %v, got %v", want, got)
		}
	}
	return nil
}

func (testCtx *TestContext) engineNotCalled() error {
	if n := testCtx.Engine.Calls(); n != 0 {
		return fmt.Errorf("OCR engine called %d times", n)
	}
	return nil
}

func (testCtx *TestContext) only() (pipeline.ProductResult, error) {
	res, err := testCtx.result()
	if err != nil {
		return pipeline.ProductResult{}, err
	}
	if len(res.Products) != 1 {
		return pipeline.ProductResult{}, fmt.Errorf("expected exactly one product, got %d", len(res.Products))
	}
	return res.Products[0], nil
}

func (testCtx *TestContext) onlyProductCoversImage() error {
	p, err := testCtx.only()
	if err != nil {
		return err
	}
	if p.Box() != testCtx.Image.Bounds() {
		return fmt.Errorf("expected box %v, got %v", testCtx.Image.Bounds(), p.Box())
	}
	return nil
}

func (testCtx *TestContext) onlyProductClass(class string) error {
	p, err := testCtx.only()
	if err != nil {
		return err
	}
	if p.Evidence.GenericClass != class {
		return fmt.Errorf("expected generic class %q, got %q", class, p.Evidence.GenericClass)
	}
	return nil
}

func (testCtx *TestContext) resultIsFallback() error {
	res, err := testCtx.result()
	if err != nil {
		return err
	}
	if !res.Fallback {
		return errors.New("expected fallback result")
	}
	return nil
}
