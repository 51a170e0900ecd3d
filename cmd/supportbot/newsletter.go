package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/memohai/supportbot/internal/newsletter"
)

func newNewsletterCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "newsletter",
		Short: "Newsletter maintenance commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "send",
		Short: "Fetch, compose and deliver one digest now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				scheduler *newsletter.Scheduler
				log       *slog.Logger
			)
			app := fx.New(commonOptions(opts.configPath), fx.Populate(&scheduler, &log))
			if err := app.Err(); err != nil {
				return err
			}
			return sendNewsletter(cmd.Context(), log, scheduler)
		},
	})
	return cmd
}

func sendNewsletter(ctx context.Context, log *slog.Logger, scheduler *newsletter.Scheduler) error {
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := scheduler.SendNow(ctx)
	if err != nil {
		return fmt.Errorf("send newsletter: %w", err)
	}
	log.Info("newsletter sent",
		slog.Int("fetched", res.Fetched),
		slog.Int("new", res.New),
		slog.Int("senders", res.Senders),
		slog.Int("chunks", res.Report.Sent),
		slog.String("skipped", res.Skipped),
	)
	return nil
}
