package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/FranksOps/keyvo/internal/config"
	"github.com/FranksOps/keyvo/internal/fingerprint"
	"github.com/FranksOps/keyvo/internal/suggest"
	"github.com/FranksOps/keyvo/internal/upstream"
	"github.com/FranksOps/keyvo/pkg/proxy"
	"github.com/FranksOps/keyvo/pkg/useragent"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "keyvo",
	Short: "Keyvo - keyword suggestion relay",
	Long: `Keyvo relays keyword queries to the Google and YouTube autocomplete
endpoints and returns their suggestions as a plain JSON array.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.SetVersionTemplate("keyvo version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a config file (default: ./keyvo.yaml if present)")
}

// loadRuntime reads configuration and builds the logger every subcommand uses.
func loadRuntime(logOut io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := cfg.Log.NewLogger(logOut)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newService wires the upstream client and suggestion service from config.
func newService(cfg *config.Config, logger *slog.Logger) (*suggest.Service, error) {
	profile, err := fingerprint.ParseProfile(cfg.Upstream.Fingerprint)
	if err != nil {
		return nil, err
	}
	decode, err := cfg.Upstream.WebSearchDecode()
	if err != nil {
		return nil, err
	}

	var proxies *proxy.Pool
	if len(cfg.Upstream.Proxies) > 0 {
		proxies, err = proxy.NewPool(proxy.Config{}, cfg.Upstream.Proxies...)
		if err != nil {
			return nil, err
		}
		logger.Info("routing upstream requests through proxies", "count", proxies.Len())
	}

	fetcher, err := upstream.NewFetcher(upstream.FetchConfig{
		WebSearchURL:    cfg.Upstream.WebSearchURL,
		VideoSearchURL:  cfg.Upstream.VideoSearchURL,
		Timeout:         cfg.Upstream.Timeout,
		MaxRedirects:    cfg.Upstream.MaxRedirects,
		WebSearchDecode: decode,
		Fingerprint:     profile,
		UAPool:          useragent.NewPool(cfg.Upstream.UserAgents),
		RandomUA:        cfg.Upstream.UARotation == config.RotateRandom,
		ProxyPool:       proxies,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create fetcher: %w", err)
	}

	return suggest.NewService(fetcher, logger), nil
}
