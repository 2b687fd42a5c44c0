// Package cmd implements the discordlite command line.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/discordlite/internal/config"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var (
	cfgFile    string
	verbose    bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "discordlite",
	Short: "discordlite: a lightweight Discord client for the terminal",
	Long: `discordlite signs in through your browser, then lets you browse guilds
and channels and read or follow channel history.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(os.Stderr)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.discordlite/config.json5, env DISCORDLITE_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(guildsCmd())
	rootCmd.AddCommand(channelsCmd())
	rootCmd.AddCommand(messagesCmd())
	rootCmd.AddCommand(browseCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", formatError(err))
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("discordlite %s\n", Version)
		},
	}
}

// resolveConfigPath returns --config, then $DISCORDLITE_CONFIG, then the
// default location.
func resolveConfigPath() string {
	if cfgFile != "" {
		return config.ExpandHome(cfgFile)
	}
	if v := os.Getenv("DISCORDLITE_CONFIG"); v != "" {
		return config.ExpandHome(v)
	}
	return config.DefaultPath()
}

// setupLogging installs the default slog handler. The config file may be
// broken at this point, so its log settings are applied best effort.
func setupLogging(w io.Writer) {
	level := slog.LevelInfo
	format := "text"
	if cfg, err := config.Load(resolveConfigPath()); err == nil {
		level = cfg.SlogLevel()
		format = cfg.Log.Format
	}
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(newLogHandler(w, format, level)))
}

func newLogHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
