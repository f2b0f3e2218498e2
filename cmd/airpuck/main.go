package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/airpuck/internal/client"
	"github.com/alfredjeanlab/airpuck/internal/config"
	"github.com/alfredjeanlab/airpuck/internal/events"
	"github.com/alfredjeanlab/airpuck/internal/ui"
)

var (
	flagBase     string
	flagTable    string
	flagAPIKey   string
	flagAPIURL   string
	flagProfile  string
	flagLogLevel string
	jsonOutput   bool
	noColor      bool

	cfg       *config.Config
	logger    = slog.Default()
	table     *client.Table
	publisher events.Publisher
)

var rootCmd = &cobra.Command{
	Use:           "airpuck <command>",
	Short:         "Work with a remote table from the command line",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadSettings(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closePublisher()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagBase, "base", "", "base id (overrides AIRPUCK_BASE_ID)")
	rootCmd.PersistentFlags().StringVar(&flagTable, "table", "", "table name (overrides AIRPUCK_TABLE)")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "api key (overrides AIRPUCK_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "service root URL (overrides AIRPUCK_API_URL)")
	rootCmd.PersistentFlags().StringVar(&flagProfile, "profile", "", "named profile to use instead of the active one")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "records", Title: "Records:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetUsageTemplate(usageTemplate)
	rootCmd.SetHelpFunc(helpFunc)

	// Records
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(replaceCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(fieldsCmd)
	rootCmd.AddCommand(attachmentCmd)

	// Sync
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(profileCmd)
}

// loadSettings resolves configuration. Flags win over the environment, which
// wins over the selected profile.
func loadSettings(cmd *cobra.Command) error {
	if noColor {
		ui.ForceNoColor()
	} else {
		ui.Init()
	}

	c, err := config.Load()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, c); err != nil {
		return err
	}
	if err := applyProfile(c, flagProfile); err != nil {
		return err
	}

	cfg = c
	logger = c.Logger(os.Stderr)
	slog.SetDefault(logger)
	return nil
}

func applyFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	set("base", &c.BaseID, flagBase)
	set("table", &c.TableName, flagTable)
	set("api-key", &c.APIKey, flagAPIKey)
	set("api-url", &c.APIURL, flagAPIURL)

	if flags.Changed("log-level") {
		lvl, err := config.ParseLogLevel(flagLogLevel)
		if err != nil {
			return fmt.Errorf("--log-level: %w", err)
		}
		c.LogLevel = lvl
	}
	return nil
}

// applyProfile fills unset values from the named profile, or from the
// active one when name is empty.
func applyProfile(c *config.Config, name string) error {
	profiles, err := config.LoadProfiles()
	if err != nil {
		return err
	}
	var (
		p  config.Profile
		ok bool
	)
	if name != "" {
		if p, ok = profiles.Profiles[name]; !ok {
			return fmt.Errorf("profile %q not found", name)
		}
	} else if p, ok = profiles.ActiveProfile(); !ok {
		return nil
	}
	p.Apply(c)
	return nil
}

// openTable creates the table on first use. Initialization starts
// immediately; an incomplete config yields a failed table. A failed initial
// pull is reported at once rather than after the ready timeout.
func openTable(ctx context.Context) *client.Table {
	if table != nil {
		return table
	}
	api := client.NewHTTPClient(cfg.APIKey, client.WithRateLimit(cfg.RateLimit))
	table = client.New(ctx, cfg.Table(),
		client.WithAPI(api),
		client.WithAPIURL(cfg.APIURL),
		client.WithLogger(logger),
		client.WithPublisher(openPublisher()),
		client.WithReadyTimeout(cfg.ReadyTimeout),
		client.WithFailFast(),
	)
	return table
}

// readyTable opens the table and waits for its first pull.
func readyTable(ctx context.Context) (*client.Table, error) {
	if err := cfg.Table().Validate(); err != nil {
		return nil, err
	}
	t := openTable(ctx)
	if err := t.Ready(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// openPublisher connects to NATS when a URL is configured. A failed
// connection is logged and events are dropped.
func openPublisher() events.Publisher {
	if publisher != nil {
		return publisher
	}
	publisher = &events.NoopPublisher{}
	if cfg.NATSURL == "" {
		return publisher
	}
	pub, err := events.NewNATSPublisher(cfg.NATSURL)
	if err != nil {
		logger.Warn("events disabled, could not connect to NATS", "nats_url", cfg.NATSURL, "err", err)
		return publisher
	}
	logger.Debug("events enabled", "nats_url", cfg.NATSURL)
	publisher = pub
	return publisher
}

func closePublisher() {
	if publisher == nil {
		return
	}
	if p, ok := publisher.(*events.NATSPublisher); ok {
		if err := p.Flush(); err != nil {
			logger.Warn("failed to flush events", "err", err)
		}
	}
	_ = publisher.Close()
	publisher = nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
