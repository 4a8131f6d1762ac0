package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/brandscan/internal/config"
	"github.com/MeKo-Tech/brandscan/internal/pipeline"
	"github.com/MeKo-Tech/brandscan/internal/utils"
)

const (
	outputFormatJSON = "json"
	outputFormatCSV  = "csv"
	outputFormatText = "text"
)

// fileResult pairs an input path with its identification result.
type fileResult struct {
	File string `json:"file"`
	*pipeline.Result
}

// identifyCmd represents the identify command.
var identifyCmd = &cobra.Command{
	Use:   "identify [images or directories...]",
	Short: "Identify product brands in images",
	Long: `Detect products in one or more images and identify the brand of each one.

Directories are searched recursively for supported images (JPEG, PNG, BMP,
TIFF, WebP). A missing detector model or OCR engine is not fatal: the image
is then treated as a single product and reported as unidentified.

Examples:
  brandscan identify shelf.jpg
  brandscan identify photos/ --format csv --output results.csv
  brandscan identify shelf.jpg --detector vision --ocr vision
  brandscan identify shelf.jpg --overlay-dir overlays --metrics-file brandscan.prom`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)

	f := identifyCmd.Flags()
	f.String("format", outputFormatJSON, "output format (json, text, csv)")
	f.StringP("output", "o", "", "write results to this file instead of stdout")
	f.String("overlay-dir", "", "save annotated overlay images to this directory")
	f.String("metrics-file", "", "write Prometheus metrics in text format to this file")
	f.String("detector", "yolo", "object detector backend (yolo, vision, none)")
	f.String("ocr", "tesseract", "OCR backend (tesseract, vision, none)")
	f.String("dictionary", "", "brand dictionary YAML file (default: built-in)")
	f.Float64("confidence-floor", 0.25, "minimum detector confidence for a candidate")
	f.Int("workers", 0, "images processed in parallel (0 = from config)")
	f.Bool("progress", false, "show a progress bar on stderr")

	_ = viper.BindPFlag("output.format", f.Lookup("format"))
	_ = viper.BindPFlag("output.file", f.Lookup("output"))
	_ = viper.BindPFlag("output.overlay_dir", f.Lookup("overlay-dir"))
	_ = viper.BindPFlag("output.metrics_file", f.Lookup("metrics-file"))
	_ = viper.BindPFlag("backends.detector", f.Lookup("detector"))
	_ = viper.BindPFlag("backends.ocr", f.Lookup("ocr"))
	_ = viper.BindPFlag("matching.dictionary_path", f.Lookup("dictionary"))
	_ = viper.BindPFlag("detection.confidence_floor", f.Lookup("confidence-floor"))
}

func runIdentify(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	if n, _ := cmd.Flags().GetInt("workers"); n > 0 {
		cfg.Parallel.ImageWorkers = n
	}

	paths, err := collectImages(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no supported images found")
	}

	images := make([]image.Image, len(paths))
	for i, p := range paths {
		img, _, err := utils.LoadImage(p)
		if err != nil {
			return fmt.Errorf("%s: %w: %w", p, pipeline.ErrMalformedInput, err)
		}
		images[i] = img
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	pl, metrics, err := buildPipeline(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := pl.Close(); err != nil {
			slog.Warn("Error closing pipeline", "error", err)
		}
	}()

	results, err := pl.ProcessImages(ctx, images)
	if err != nil {
		return fmt.Errorf("identification failed: %w", err)
	}

	out := make([]fileResult, len(paths))
	for i := range paths {
		out[i] = fileResult{File: paths[i], Result: results[i]}
	}

	if dir := cfg.Output.OverlayDir; dir != "" {
		if err := saveOverlays(dir, images, out); err != nil {
			return err
		}
	}

	text, err := formatResults(cfg.Output.Format, out)
	if err != nil {
		return err
	}
	if err := writeOutput(cmd, cfg.Output.File, text); err != nil {
		return err
	}

	if path := cfg.Output.MetricsFile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

func buildPipeline(cmd *cobra.Command, cfg *config.Config) (*pipeline.Pipeline, *pipeline.Metrics, error) {
	backends, err := pipeline.OpenBackends(cmd.Context(), cfg.ToBackendConfig())
	if err != nil {
		return nil, nil, err
	}

	pcfg := cfg.ToPipelineConfig()
	if show, _ := cmd.Flags().GetBool("progress"); show {
		pcfg.Parallel.ProgressCallback = pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "")
	} else {
		pcfg.Parallel.ProgressCallback = pipeline.NewLogProgressCallback(slog.Default(), slog.LevelDebug)
	}

	metrics := pipeline.NewMetrics(nil)
	pl, err := backends.Apply(pipeline.NewBuilder().WithConfig(pcfg).WithMetrics(metrics)).Build()
	if err != nil {
		_ = backends.Close()
		return nil, nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	return pl, metrics, nil
}

// collectImages expands directories recursively and keeps argument order for
// files. Files given explicitly must be supported images.
func collectImages(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			if !utils.IsSupportedImage(arg) {
				return nil, fmt.Errorf("unsupported image format: %s", arg)
			}
			paths = append(paths, arg)
			continue
		}
		var found []string
		err = filepath.WalkDir(arg, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && utils.IsSupportedImage(p) {
				found = append(found, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", arg, err)
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	return paths, nil
}

func formatResults(format string, results []fileResult) (string, error) {
	switch format {
	case outputFormatJSON, "":
		b, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return string(b), nil
	case outputFormatCSV:
		var sb strings.Builder
		for _, r := range results {
			s, err := pipeline.ToCSV(r.Result)
			if err != nil {
				return "", fmt.Errorf("format csv failed: %w", err)
			}
			if len(results) > 1 {
				sb.WriteString("# " + r.File + "\n")
			}
			sb.WriteString(s)
		}
		return sb.String(), nil
	case outputFormatText:
		parts := make([]string, 0, len(results))
		for _, r := range results {
			s, err := pipeline.ToPlainText(r.Result)
			if err != nil {
				return "", fmt.Errorf("format text failed: %w", err)
			}
			parts = append(parts, r.File+":\n"+s)
		}
		return strings.Join(parts, "\n\n"), nil
	default:
		return "", fmt.Errorf("invalid output format: %s (must be one of: %s, %s, %s)",
			format, outputFormatJSON, outputFormatText, outputFormatCSV)
	}
}

func writeOutput(cmd *cobra.Command, file, text string) error {
	if file == "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), text)
		return err
	}
	if err := os.WriteFile(file, []byte(text+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	slog.Info("Results written", "file", file)
	return nil
}

func saveOverlays(dir string, images []image.Image, results []fileResult) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create overlay dir: %w", err)
	}
	for i, r := range results {
		ov := pipeline.RenderOverlay(images[i], r.Result)
		if ov == nil {
			continue
		}
		base := strings.TrimSuffix(filepath.Base(r.File), filepath.Ext(r.File))
		outPath := filepath.Join(dir, base+"_overlay.png")
		if err := utils.SaveImage(ov, outPath); err != nil {
			return fmt.Errorf("failed to save overlay %s: %w", outPath, err)
		}
		slog.Debug("Saved overlay", "path", outPath)
	}
	return nil
}
