package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eugener/ipscope/internal/config"
)

// globalFlags are the persistent flags shared by every subcommand. Non-empty
// values override the config file.
type globalFlags struct {
	configPath string
	token      string
	edition    string
	logLevel   string
	logFormat  string
}

type cli struct {
	flags globalFlags
	cfg   *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "ipscope",
		Short:         "IP address and ASN metadata lookups",
		Long:          "ipscope resolves IP addresses and ASN identifiers to geolocation, network and\ncountry metadata, caching results in memory.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd.ErrOrStderr())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&c.flags.configPath, "config", "c", "", "path to config file (defaults when empty)")
	pf.StringVar(&c.flags.token, "token", "", "API access token (overrides upstream.token)")
	pf.StringVar(&c.flags.edition, "edition", "", "API edition: standard, lite, core, plus")
	pf.StringVar(&c.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&c.flags.logFormat, "log-format", "", "log format: text or json")

	root.AddCommand(
		c.newLookupCmd(),
		c.newBatchCmd(),
		c.newMapCmd(),
		c.newServeCmd(),
	)
	return root
}

// load reads the config, applies flag overrides and installs the logger.
func (c *cli) load(logOut io.Writer) error {
	cfg, err := config.Load(c.flags.configPath)
	if err != nil {
		return err
	}
	if c.flags.token != "" {
		cfg.Upstream.Token = c.flags.token
	}
	if c.flags.edition != "" {
		cfg.Upstream.Edition = c.flags.edition
	}
	if c.flags.logLevel != "" {
		cfg.Log.Level = c.flags.logLevel
	}
	if c.flags.logFormat != "" {
		cfg.Log.Format = c.flags.logFormat
	}

	logger, err := newLogger(logOut, cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	c.cfg = cfg
	return nil
}

func newLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q", cfg.Level)
		}
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}
}
