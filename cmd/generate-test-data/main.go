package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/brandscan/internal/testutil"
)

// fixture records what a generated shelf contains.
type fixture struct {
	Image    string       `json:"image"`
	Width    int          `json:"width"`
	Height   int          `json:"height"`
	Products []fixtureBox `json:"products"`
}

type fixtureBox struct {
	BBox  [4]int `json:"bbox"`
	Label string `json:"label"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir = flag.String("out", "testdata/shelves", "Output directory")
		blur   = flag.Float64("blur", 0, "Gaussian blur sigma applied to every shelf")
		help   = flag.Bool("h", false, "Show help")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate synthetic shelf images and their fixtures.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if *help {
		flag.Usage()
		return
	}

	root, err := testutil.GetProjectRoot()
	if err != nil {
		slog.Error("Failed to find project root", "error", err)
		os.Exit(1)
	}
	dir := *outDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		slog.Error("Failed to create output directory", "error", err)
		os.Exit(1)
	}

	all := scenes()
	var fixtures []fixture
	for _, name := range slices.Sorted(maps.Keys(all)) {
		cfg := all[name]
		f, err := writeScene(dir, name, cfg, *blur)
		if err != nil {
			slog.Error("Failed to write scene", "scene", name, "error", err)
			os.Exit(1)
		}
		fixtures = append(fixtures, f)
		slog.Info("Generated shelf", "scene", name, "products", len(cfg.Items))
	}

	data, err := json.MarshalIndent(fixtures, "", "  ")
	if err != nil {
		slog.Error("Failed to encode fixtures", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(filepath.Join(dir, "fixtures.json"), data, 0o600); err != nil {
		slog.Error("Failed to write fixtures", "error", err)
		os.Exit(1)
	}
	slog.Info("Test data generation completed", "dir", dir, "scenes", len(fixtures))
}

func scenes() map[string]testutil.ShelfConfig {
	crowded := testutil.DefaultShelfConfig()
	crowded.Width = 480
	crowded.Items = append(crowded.Items, testutil.ShelfItem{
		Box:   image.Rect(330, 60, 450, 220),
		Label: "FANTA",
		Fill:  color.RGBA{R: 230, G: 120, B: 20, A: 255},
	})

	empty := testutil.DefaultShelfConfig()
	empty.Items = nil

	return map[string]testutil.ShelfConfig{
		"default": testutil.DefaultShelfConfig(),
		"crowded": crowded,
		"empty":   empty,
	}
}

func writeScene(dir, name string, cfg testutil.ShelfConfig, sigma float64) (fixture, error) {
	var img image.Image = testutil.GenerateShelfImage(cfg)
	if sigma > 0 {
		img = imaging.Blur(img, sigma)
	}
	file := name + ".png"
	if err := imaging.Save(img, filepath.Join(dir, file)); err != nil {
		return fixture{}, fmt.Errorf("failed to save %s: %w", file, err)
	}

	f := fixture{Image: file, Width: cfg.Width, Height: cfg.Height, Products: []fixtureBox{}}
	for _, it := range cfg.Items {
		f.Products = append(f.Products, fixtureBox{
			BBox:  [4]int{it.Box.Min.X, it.Box.Min.Y, it.Box.Max.X, it.Box.Max.Y},
			Label: it.Label,
		})
	}
	return f, nil
}
