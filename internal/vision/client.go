// Package vision adapts Google Cloud Vision to the object detection and OCR
// capabilities used by the pipeline.
package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"

	gvision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"github.com/MeKo-Tech/brandscan/internal/detector"
	"github.com/MeKo-Tech/brandscan/internal/ocr"
	"github.com/MeKo-Tech/brandscan/internal/utils"
)

// Config configures the Cloud Vision client.
type Config struct {
	CredentialsFile string // empty uses Application Default Credentials
	Endpoint        string // optional API endpoint override
	MaxObjects      int    // cap on localized objects per request (default: 50)
}

// DefaultConfig returns the default client settings.
func DefaultConfig() Config {
	return Config{MaxObjects: 50}
}

// AnnotateFunc issues a batch annotate request.
type AnnotateFunc func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error)

// Client implements detector.ObjectDetector and ocr.Engine.
type Client struct {
	annotate AnnotateFunc
	closer   io.Closer
	cfg      Config
}

var (
	_ detector.ObjectDetector = (*Client)(nil)
	_ ocr.Engine              = (*Client)(nil)
)

// New creates a client backed by the Cloud Vision API.
func New(ctx context.Context, cfg Config) (*Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	client, err := gvision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	annotate := func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
		return client.BatchAnnotateImages(ctx, req)
	}
	return NewWithAnnotator(annotate, client, cfg), nil
}

// NewWithAnnotator builds a client around an arbitrary annotate function.
// closer may be nil.
func NewWithAnnotator(annotate AnnotateFunc, closer io.Closer, cfg Config) *Client {
	if cfg.MaxObjects <= 0 {
		cfg.MaxObjects = DefaultConfig().MaxObjects
	}
	return &Client{annotate: annotate, closer: closer, cfg: cfg}
}

// Close releases the API client.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// Name identifies the backend.
func (c *Client) Name() string { return "vision" }

// Detect localizes objects and converts normalized vertices to pixel boxes.
func (c *Client) Detect(ctx context.Context, img image.Image, confidenceFloor float64) ([]detector.Detection, error) {
	resp, err := c.request(ctx, img, nil, &visionpb.Feature{
		Type:       visionpb.Feature_OBJECT_LOCALIZATION,
		MaxResults: int32(c.cfg.MaxObjects),
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}

	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	dets := make([]detector.Detection, 0, len(resp.LocalizedObjectAnnotations))
	for _, obj := range resp.LocalizedObjectAnnotations {
		score := float64(obj.GetScore())
		if score < confidenceFloor {
			continue
		}
		verts := obj.GetBoundingPoly().GetNormalizedVertices()
		if len(verts) == 0 {
			continue
		}
		minX, minY := 1.0, 1.0
		maxX, maxY := 0.0, 0.0
		for _, v := range verts {
			x, y := float64(v.GetX()), float64(v.GetY())
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
		dets = append(dets, detector.Detection{
			Box: utils.NewBox(
				float64(b.Min.X)+minX*w, float64(b.Min.Y)+minY*h,
				float64(b.Min.X)+maxX*w, float64(b.Min.Y)+maxY*h,
			),
			Label: obj.GetName(),
			Score: score,
		})
	}
	return dets, nil
}

// Read runs text detection. Block layouts use document text detection; the
// whitelist, when set, is applied to the returned text.
func (c *Client) Read(ctx context.Context, img image.Image, page ocr.PageConfig) (string, error) {
	feature := visionpb.Feature_TEXT_DETECTION
	if page.PageSegMode == ocr.PSMSingleBlock || page.PageSegMode == ocr.PSMAutoFallback {
		feature = visionpb.Feature_DOCUMENT_TEXT_DETECTION
	}
	var imageCtx *visionpb.ImageContext
	if len(page.Languages) > 0 {
		imageCtx = &visionpb.ImageContext{LanguageHints: page.Languages}
	}

	resp, err := c.request(ctx, img, imageCtx, &visionpb.Feature{Type: feature})
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", nil
	}

	text := resp.GetFullTextAnnotation().GetText()
	if text == "" && len(resp.TextAnnotations) > 0 {
		text = resp.TextAnnotations[0].GetDescription()
	}
	return applyWhitelist(text, page.Whitelist), nil
}

func (c *Client) request(ctx context.Context, img image.Image, imageCtx *visionpb.ImageContext,
	feature *visionpb.Feature,
) (*visionpb.AnnotateImageResponse, error) {
	if c.annotate == nil {
		return nil, errors.New("vision client is not configured")
	}
	content, err := utils.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image:        &visionpb.Image{Content: content},
				Features:     []*visionpb.Feature{feature},
				ImageContext: imageCtx,
			},
		},
	}

	resp, err := c.annotate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vision API request failed: %w", err)
	}
	if len(resp.GetResponses()) == 0 {
		return nil, nil
	}
	if e := resp.Responses[0].GetError(); e != nil {
		return nil, fmt.Errorf("vision API error: %s", e.GetMessage())
	}
	return resp.Responses[0], nil
}

func applyWhitelist(text, whitelist string) string {
	if whitelist == "" {
		return text
	}
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(whitelist, r) || r == ' ' || r == '\n' {
			return r
		}
		return -1
	}, text)
}
