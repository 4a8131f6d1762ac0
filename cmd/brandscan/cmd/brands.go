package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/brandscan/internal/brand"
)

var brandsCmd = &cobra.Command{
	Use:   "brands",
	Short: "Inspect the brand dictionary",
}

var brandsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the brands and patterns in the dictionary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		matcher, err := loadMatcher()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "BRAND\tPATTERNS")
		for _, b := range matcher.Dictionary().Brands() {
			_, _ = fmt.Fprintf(w, "%s\t%s\n", b.Name, strings.Join(b.Patterns, ", "))
		}
		return w.Flush()
	},
}

var brandsMatchCmd = &cobra.Command{
	Use:   "match [text...]",
	Short: "Match OCR text against the dictionary",
	Long: `Normalize each argument as OCR output and print the best brand match as JSON.
When nothing matches, the unidentified label that would be reported is printed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		matcher, err := loadMatcher()
		if err != nil {
			return err
		}
		cfg, err := GetConfig()
		if err != nil {
			return err
		}

		out := struct {
			Match *brand.Match `json:"match"`
			Label string       `json:"label"`
		}{Match: matcher.Match(args)}
		if out.Match != nil {
			out.Label = out.Match.Brand
		} else {
			out.Label = brand.UnidentifiedLabel(args, "", cfg.Scoring.MinTokenLength)
		}

		b, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return err
	},
}

func init() {
	rootCmd.AddCommand(brandsCmd)
	brandsCmd.AddCommand(brandsListCmd, brandsMatchCmd)
}

func loadMatcher() (*brand.Matcher, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	pcfg := cfg.ToPipelineConfig()
	dict, err := brand.LoadDictionary(pcfg.DictionaryPath, pcfg.MinPatternLength)
	if err != nil {
		return nil, fmt.Errorf("failed to load brand dictionary: %w", err)
	}
	return brand.NewMatcher(dict, pcfg.Matcher)
}
