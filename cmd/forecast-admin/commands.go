package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantsignal/forecast-api/internal/adapters/healthclient"
	"github.com/quantsignal/forecast-api/internal/data"
	"github.com/quantsignal/forecast-api/internal/domain/model"
	"github.com/quantsignal/forecast-api/internal/migrate"
)

func newMigrateCmd(app *cli) *cobra.Command {
	var statusOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := app.commandContext(cmd)
			defer cancel()

			in, err := app.connectDB(ctx)
			if err != nil {
				return err
			}
			defer app.release(in)

			if !statusOnly {
				applied, err := migrate.Run(ctx, in.DB)
				if err != nil {
					return err
				}
				app.logger.InfoContext(ctx, "migrations complete", "applied", len(applied))
			}

			statuses, err := migrate.List(ctx, in.DB)
			if err != nil {
				return err
			}
			renderMigrations(cmd.OutOrStdout(), statuses)
			return nil
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "only list migrations and whether they are applied")
	return cmd
}

func newKeysCmd(app *cli) *cobra.Command {
	keys := &cobra.Command{
		Use:   "keys",
		Short: "Inspect and maintain API keys",
	}

	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Deactivate every expired API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := app.commandContext(cmd)
			defer cancel()

			in, err := app.connectInfra(ctx)
			if err != nil {
				return err
			}
			defer app.release(in)
			svc, err := app.services(ctx, in)
			if err != nil {
				return err
			}

			n, err := svc.Keys.SweepExpired(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deactivated %d expired key(s)\n", n)
			return err
		},
	}

	var owner string
	list := &cobra.Command{
		Use:   "list",
		Short: "List an owner's API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := app.commandContext(cmd)
			defer cancel()

			in, err := app.connectInfra(ctx)
			if err != nil {
				return err
			}
			defer app.release(in)
			svc, err := app.services(ctx, in)
			if err != nil {
				return err
			}

			principal, err := data.NewPrincipalRepo(in.DB).GetBySubject(ctx, owner)
			if err != nil {
				return fmt.Errorf("look up owner %q: %w", owner, err)
			}
			keys, err := svc.Keys.List(ctx, principal.ID)
			if err != nil {
				return err
			}
			renderKeys(cmd.OutOrStdout(), principal, keys)
			return nil
		},
	}
	list.Flags().StringVar(&owner, "owner", "", "owner subject as issued by the identity provider")
	_ = list.MarkFlagRequired("owner")

	keys.AddCommand(sweep, list)
	return keys
}

func newJobsCmd(app *cli) *cobra.Command {
	jobs := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger scheduled jobs",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered jobs with their next run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := app.commandContext(cmd)
			defer cancel()

			in, err := app.connectInfra(ctx)
			if err != nil {
				return err
			}
			defer app.release(in)
			svc, err := app.services(ctx, in)
			if err != nil {
				return err
			}

			renderJobs(cmd.OutOrStdout(), svc.Scheduler.Scheduler().Jobs())
			return nil
		},
	}

	run := &cobra.Command{
		Use:   "run <job_id>",
		Short: "Run one job now through the task executor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := app.commandContext(cmd)
			defer cancel()

			in, err := app.connectInfra(ctx)
			if err != nil {
				return err
			}
			defer app.release(in)
			svc, err := app.services(ctx, in)
			if err != nil {
				return err
			}

			rec, err := svc.Scheduler.Scheduler().RunNow(ctx, model.JobID(args[0]))
			if err != nil {
				return err
			}
			renderExecution(cmd.OutOrStdout(), rec)
			if rec.Outcome != model.TaskOutcomeSuccess {
				return fmt.Errorf("job %s finished with outcome %s", rec.JobID, rec.Outcome)
			}
			return nil
		},
	}

	jobs.AddCommand(list, run)
	return jobs
}

func newHealthCmd(app *cli) *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Print the aggregated health report",
		Long: "Print the aggregated health report. With --url the report is fetched from a running\n" +
			"server's /health/check; otherwise components are probed from this process.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := app.commandContext(cmd)
			defer cancel()

			var report model.HealthReport
			if url != "" {
				client, err := healthclient.New(healthclient.Config{URL: url, Logger: app.logger})
				if err != nil {
					return err
				}
				report = client.Check(ctx)
			} else {
				in, err := app.connectInfra(ctx)
				if err != nil {
					return err
				}
				defer app.release(in)
				svc, err := app.services(ctx, in)
				if err != nil {
					return err
				}
				report = svc.Health.Check(ctx)
			}

			renderHealth(cmd.OutOrStdout(), report)
			if report.Status == model.HealthUnhealthy {
				return errors.New("service is unhealthy")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "full URL of a running server's /health/check")
	return cmd
}
