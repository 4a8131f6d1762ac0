package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/brandscan/internal/detector"
	"github.com/MeKo-Tech/brandscan/internal/ocr"
	"github.com/MeKo-Tech/brandscan/internal/refiner"
	"github.com/MeKo-Tech/brandscan/internal/scoring"
	"github.com/MeKo-Tech/brandscan/internal/utils"
)

// ErrMalformedInput rejects images that cannot be decoded or have no pixels.
var ErrMalformedInput = errors.New("malformed input image")

// regionJob is one hypothesis of one candidate.
type regionJob struct {
	candidate  int
	hypothesis refiner.Hypothesis
}

// IdentifyBytes decodes an encoded image and identifies products in it.
func (p *Pipeline) IdentifyBytes(ctx context.Context, data []byte) (*Result, error) {
	img, _, err := utils.DecodeImage(data)
	if err != nil {
		p.metrics.observeImage(statusMalformed)
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}
	return p.Identify(ctx, img)
}

// Identify runs the state machine on one image. Only malformed input and
// cancellation are returned as errors; every other failure is absorbed into
// lower confidence or an unidentified label.
func (p *Pipeline) Identify(ctx context.Context, img image.Image) (*Result, error) {
	if img == nil || img.Bounds().Empty() {
		p.metrics.observeImage(statusMalformed)
		return nil, ErrMalformedInput
	}
	start := time.Now()
	img = atOrigin(img)
	bounds := img.Bounds()
	t := &tracker{onState: p.cfg.OnState}
	res := &Result{Width: bounds.Dx(), Height: bounds.Dy(), Products: []ProductResult{}}

	t.enter(StateDetecting)
	stageStart := time.Now()
	cands, fallback := p.detector.Detect(ctx, img)
	res.Processing.DetectionNs = time.Since(stageStart).Nanoseconds()
	res.Candidates = len(cands)
	res.Fallback = fallback
	p.metrics.observeDetection(len(cands), fallback)
	p.metrics.observeStage(StateDetecting, time.Since(stageStart))

	if len(cands) == 0 {
		t.enter(StateDone)
		res.Trace = t.trace
		res.Processing.TotalNs = time.Since(start).Nanoseconds()
		p.metrics.observeImage(statusOK)
		slog.Debug("No candidates, finishing early")
		return res, nil
	}

	t.enter(StateRefining)
	stageStart = time.Now()
	var jobs []regionJob
	for i, c := range cands {
		for _, h := range p.refiner.Propose(bounds, c.Box) {
			jobs = append(jobs, regionJob{candidate: i, hypothesis: h})
		}
	}
	p.metrics.observeStage(StateRefining, time.Since(stageStart))

	t.enter(StateExtractingText)
	stageStart = time.Now()
	extractions := runIndexed(ctx, len(jobs), p.cfg.Workers, func(ctx context.Context, i int) ocr.Extraction {
		crop := utils.CropImageRect(img, jobs[i].hypothesis.Bounds)
		return p.ensemble.Extract(ctx, crop)
	})
	res.Processing.ExtractionNs = time.Since(stageStart).Nanoseconds()
	p.metrics.observeStage(StateExtractingText, time.Since(stageStart))
	if err := ctx.Err(); err != nil {
		return p.cancelled(err)
	}

	t.enter(StateMatching)
	stageStart = time.Now()
	perCandidate := make([][]scoring.HypothesisResult, len(cands))
	for i, job := range jobs {
		hr := scoring.HypothesisResult{
			Hypothesis: job.hypothesis,
			Extraction: extractions[i],
			Match:      p.matcher.Match(extractions[i].Texts()),
		}
		perCandidate[job.candidate] = append(perCandidate[job.candidate], hr)
	}
	p.metrics.observeStage(StateMatching, time.Since(stageStart))

	t.enter(StateScoring)
	stageStart = time.Now()
	products := make([]scoring.Product, len(cands))
	for i, c := range cands {
		products[i] = p.scorer.Score(c, perCandidate[i])
	}
	p.metrics.observeStage(StateScoring, time.Since(stageStart))

	if err := ctx.Err(); err != nil {
		return p.cancelled(err)
	}

	t.enter(StateDeduping)
	stageStart = time.Now()
	kept := p.dedupe.Dedupe(products)
	p.metrics.observeStage(StateDeduping, time.Since(stageStart))

	for _, prod := range kept {
		res.Products = append(res.Products, toProductResult(prod))
		p.metrics.observeProduct(prod.Identified)
	}

	t.enter(StateDone)
	res.Trace = t.trace
	res.Processing.TotalNs = time.Since(start).Nanoseconds()
	p.metrics.observeImage(statusOK)

	slog.Debug("Identification complete",
		"candidates", len(cands),
		"hypotheses", len(jobs),
		"products", len(res.Products),
		"fallback", fallback,
		"duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

func (p *Pipeline) cancelled(err error) (*Result, error) {
	p.metrics.observeImage(statusCancelled)
	return nil, err
}

// Detect exposes the detection stage alone. Boxes are relative to the
// top-left corner of img, as in Identify.
func (p *Pipeline) Detect(ctx context.Context, img image.Image) ([]detector.Candidate, bool) {
	if img == nil {
		return nil, false
	}
	return p.detector.Detect(ctx, atOrigin(img))
}

// atOrigin returns img unchanged when its bounds start at (0,0), otherwise
// a copy anchored there. Backends and output boxes all use these coordinates.
func atOrigin(img image.Image) image.Image {
	if img.Bounds().Min == (image.Point{}) {
		return img
	}
	return utils.ToRGBA(img)
}
