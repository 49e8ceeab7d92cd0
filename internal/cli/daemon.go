package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"swing-trader/internal/models"
	"swing-trader/internal/scheduler"
)

func newDaemonCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run pool creation and finalization on their cron schedules",
		Long: `Runs in the foreground and triggers the jobs on the configured
schedule (by default finalization at 15:15 and pool creation at 16:30 IST,
Monday to Friday). Holidays from the calendar are skipped. Stop with Ctrl+C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := NewOutput(cmd)
			s, err := app.newScheduler(ctx, out)
			if err != nil {
				return err
			}

			// Open shared resources before jobs can start concurrently.
			if _, err := app.MarketData(); err != nil {
				return err
			}

			s.Start()
			out.Success("Daemon started at %s", FormatDateTime(app.now()))
			for _, e := range s.Entries() {
				out.Printf("  %-14s %-16s next %s\n", e.Name, e.Spec, FormatDateTime(e.Next))
			}

			<-ctx.Done()
			out.Info("Shutting down, waiting for running jobs")
			<-s.Stop().Done()
			return nil
		},
	}
}

// newScheduler registers both jobs. Each run re-checks the trading calendar.
func (a *App) newScheduler(ctx context.Context, out *Output) (*scheduler.Scheduler, error) {
	s := scheduler.New(ctx, a.Config.Location(), a.Logger)

	jobs := []scheduler.Job{
		{
			Name: models.JobFinalization,
			Spec: a.Config.Schedule.FinalizeCron,
			Run: func(ctx context.Context) error {
				if !a.tradingDayGate(ctx, models.JobFinalization, false) {
					return nil
				}
				_, err := a.RunFinalization(ctx, out, a.Config.FinalizeMode())
				return err
			},
		},
		{
			Name: models.JobPoolCreation,
			Spec: a.Config.Schedule.PoolCron,
			Run: func(ctx context.Context) error {
				if !a.tradingDayGate(ctx, models.JobPoolCreation, false) {
					return nil
				}
				_, err := a.RunPoolCreation(ctx, out)
				return err
			},
		},
	}
	for _, job := range jobs {
		if err := s.Register(job); err != nil {
			return nil, err
		}
	}
	return s, nil
}
