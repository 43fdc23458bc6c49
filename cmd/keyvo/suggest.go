package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/keyvo/internal/provider"
	"github.com/FranksOps/keyvo/internal/report"
	"github.com/FranksOps/keyvo/internal/suggest"
)

var (
	suggestPlatform string
	suggestRegion   string
	suggestFormat   string
)

var suggestCmd = &cobra.Command{
	Use:   "suggest <query>",
	Short: "Look up suggestions once and print them",
	Long: `Query one provider directly, without starting the server. Multiple
arguments are joined with spaces.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSuggest,
}

func init() {
	rootCmd.AddCommand(suggestCmd)
	suggestCmd.Flags().StringVarP(&suggestPlatform, "platform", "p", provider.Default.Platform(),
		"Provider: "+strings.Join(platformNames(), " or "))
	suggestCmd.Flags().StringVar(&suggestRegion, "gl", "", "Country code (google only)")
	suggestCmd.Flags().StringVarP(&suggestFormat, "format", "f", "text", "Output format: text or json")
}

func platformNames() []string {
	var names []string
	for _, p := range provider.All() {
		names = append(names, p.Platform())
	}
	return names
}

func runSuggest(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(suggestFormat)
	if err != nil {
		return err
	}
	p, err := provider.Parse(suggestPlatform)
	if err != nil {
		return fmt.Errorf("invalid platform %q: valid choices are %s", suggestPlatform, strings.Join(platformNames(), ", "))
	}

	cfg, logger, err := loadRuntime(os.Stderr)
	if err != nil {
		return err
	}
	svc, err := newService(cfg, logger)
	if err != nil {
		return err
	}

	q := suggest.Query{
		Text:     strings.Join(args, " "),
		Region:   suggestRegion,
		Provider: p,
	}

	start := time.Now()
	list, err := svc.Suggest(cmd.Context(), q)
	if err != nil {
		return err
	}

	return report.Write(cmd.OutOrStdout(), format, report.Result{
		Query:       q.Text,
		Region:      q.Region,
		Platform:    p.Platform(),
		Suggestions: list,
		Duration:    time.Since(start).Round(time.Millisecond),
	})
}
