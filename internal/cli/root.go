// Package cli implements the dispatch command line: pick list queries,
// assignment, scanning, printing and the interactive station.
package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Mrhamza01/prlabel/internal/dispatch"
	"github.com/Mrhamza01/prlabel/pkg/logging"
)

// EnvPrefix prefixes every environment override, e.g. DISPATCH_PRINT_URL
const EnvPrefix = "DISPATCH"

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Config is the resolved CLI configuration. Values come from flags, then
// DISPATCH_* environment variables, then the config file, then defaults.
type Config struct {
	FulfillmentURL string
	PrintURL       string
	Timeout        time.Duration
	Entity         string
	Format         string
	Verbose        bool
}

// RootOptions holds global state shared by all commands.
type RootOptions struct {
	ConfigFile string
	Config     *Config
	Logger     *logging.Logger

	factory ClientFactory
	clients *Clients
}

// Clients returns the gateway clients, creating them on first use
func (o *RootOptions) Clients() (*Clients, error) {
	if o.clients != nil {
		return o.clients, nil
	}
	c, err := o.factory(o.Config, o.Logger)
	if err != nil {
		return nil, err
	}
	o.clients = c
	return c, nil
}

// NewRootCommand creates the dispatch root command. A nil factory uses the
// HTTP gateway clients.
func NewRootCommand(factory ClientFactory) *cobra.Command {
	if factory == nil {
		factory = NewGatewayClients
	}
	opts := &RootOptions{factory: factory}

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Warehouse dispatch station",
		Long: `Pick list browsing, scanning and label printing against the
fulfillment and print gateways.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts.ConfigFile)
			if err != nil {
				return err
			}
			opts.Config = cfg
			opts.Logger = newLogger(cmd, cfg)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ConfigFile, "config", "", "config file (YAML)")
	flags.String("fulfillment-url", "http://localhost:3000/api", "fulfillment gateway base URL")
	flags.String("print-url", "http://localhost:4000", "print gateway base URL")
	flags.Duration("timeout", dispatch.DefaultCallTimeout, "timeout for each gateway call")
	flags.String("entity", "", "packer entity ID used for filtering and assignment")
	flags.String("format", "text", "output format (json|text)")
	flags.BoolP("verbose", "v", false, "log gateway calls to stderr")

	cmd.AddCommand(NewPickListsCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewLinesCommand(opts))
	cmd.AddCommand(NewAssignCommand(opts))
	cmd.AddCommand(NewScanCommand(opts))
	cmd.AddCommand(NewPrintCommand(opts))
	cmd.AddCommand(NewSyncInfoCommand(opts))
	cmd.AddCommand(NewPrintersCommand(opts))
	cmd.AddCommand(NewStationCommand(opts))

	return cmd
}

var configKeys = map[string]string{
	"fulfillment_url": "fulfillment-url",
	"print_url":       "print-url",
	"timeout":         "timeout",
	"entity":          "entity",
	"format":          "format",
	"verbose":         "verbose",
}

func loadConfig(cmd *cobra.Command, configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, flag := range configKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{
		FulfillmentURL: v.GetString("fulfillment_url"),
		PrintURL:       v.GetString("print_url"),
		Timeout:        v.GetDuration("timeout"),
		Entity:         v.GetString("entity"),
		Format:         strings.ToLower(v.GetString("format")),
		Verbose:        v.GetBool("verbose"),
	}

	if !isValidFormat(cfg.Format) {
		return nil, fmt.Errorf("invalid format %q: must be one of %v", cfg.Format, ValidFormats)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("invalid timeout %s: must be positive", cfg.Timeout)
	}
	return cfg, nil
}

// newLogger writes JSON logs to stderr, quiet unless --verbose
func newLogger(cmd *cobra.Command, cfg *Config) *logging.Logger {
	logCfg := logging.DefaultConfig("dispatch")
	logCfg.Output = cmd.ErrOrStderr()
	logCfg.Level = logging.LevelWarn
	if cfg.Verbose {
		logCfg.Level = logging.LevelDebug
	}
	return logging.New(logCfg)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
