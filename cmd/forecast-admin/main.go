// Command forecast-admin runs operator tasks against the forecast database,
// counter store and job registry.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantsignal/forecast-api/config"
	"github.com/quantsignal/forecast-api/internal/bootstrap"
)

const defaultCommandTimeout = 2 * time.Minute

// cli carries state shared by every subcommand.
type cli struct {
	logger  *slog.Logger
	cfg     config.AppConfig
	timeout time.Duration
}

func main() {
	logger := bootstrap.InitLogger()
	app := &cli{logger: logger}
	if err := newRootCmd(app).ExecuteContext(context.Background()); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func newRootCmd(app *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "forecast-admin",
		Short:         "Operator tasks for the forecast API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			cfg, err := bootstrap.LoadConfig()
			if err != nil {
				return err
			}
			app.cfg = cfg
			return bootstrap.SetLogLevel(cfg.LogLevel)
		},
	}
	root.PersistentFlags().DurationVar(&app.timeout, "timeout", defaultCommandTimeout, "overall command timeout")

	root.AddCommand(
		newMigrateCmd(app),
		newKeysCmd(app),
		newJobsCmd(app),
		newHealthCmd(app),
	)
	return root
}

// commandContext bounds a command by --timeout.
func (c *cli) commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout := c.timeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	return context.WithTimeout(cmd.Context(), timeout)
}
