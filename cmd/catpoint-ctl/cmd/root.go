package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/catpoint/internal/config"
	"github.com/oshokin/catpoint/internal/service/client"
	"github.com/oshokin/catpoint/internal/version"
)

var (
	// options is shared by every subcommand.
	options client.Options

	// rootCmd represents the base command for controlling the security server.
	rootCmd = &cobra.Command{
		Use:   "catpoint-ctl",
		Short: "Control the catpoint security server.",
		Long: `Sends commands to a running catpoint-server.

Every command prints the resulting system status: alarm status, arming status,
the last cat detection result and the registered sensors.
Server address is taken from the configuration file unless --server is set.
The caller hostname and username are sent along for the server audit log.`,
		SilenceUsage: true,
	}
)

// Execute runs the catpoint-ctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

// run executes one action with the shared options.
func run(name string, action client.Action) error {
	ctx, stop := signalContext()
	defer stop()

	return client.Run(ctx, &options, name, action)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&options.ConfigPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&options.ServerAddress, "server", "s", "", "server address, overrides configuration")
	flags.BoolVarP(&options.Retry, "retry", "r", false, "keep retrying while the server is unavailable")

	rootCmd.AddCommand(statusCmd, armCmd, disarmCmd, sensorCmd, imageCmd, watchCmd)
}
