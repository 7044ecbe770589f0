package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"ai-batcher/internal/batch"
	"ai-batcher/internal/llm"
	"ai-batcher/internal/scheduler"
	"ai-batcher/internal/selector"
	"ai-batcher/internal/storage"
)

func (c *cli) runBatch(cmd *cobra.Command, args []string) error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	client, err := llm.NewFactory(c.cfg, c.logger).CreateClient(c.cfg.LLMProvider, c.cfg.Model)
	if err != nil {
		return fmt.Errorf("failed to create llm client: %w", err)
	}
	rec, err := c.recorder()
	if err != nil {
		return err
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if c.cfg.RequestInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(c.cfg.RequestInterval), 1)
	}

	sel := selector.NewFromClock(c.cfg.EmptySystemProbability)
	if cmd.Flags().Changed("seed") {
		sel = selector.New(c.seed, c.cfg.EmptySystemProbability)
	}

	runner := batch.New(batch.Options{
		SystemPath: c.cfg.SystemMessagePath,
		UserPath:   c.cfg.UserMessagePath,
		Client:     client,
		Selector:   sel,
		Recorder:   rec,
		Console:    batch.NewConsole(cmd.OutOrStdout()),
		Logger:     c.logger,
		Limiter:    limiter,
	})

	c.logger.Info("batcher configured",
		zap.String("provider", string(c.cfg.LLMProvider)),
		zap.String("endpoint", c.cfg.Endpoint),
		zap.String("model", c.cfg.Model),
		zap.String("log_file", c.cfg.LogFilePath),
		zap.String("journal", c.cfg.JournalPath),
	)

	if c.cfg.Schedule == "" {
		_, err := runner.Run(cmd.Context())
		return err
	}
	return c.runScheduled(cmd.Context(), runner)
}

// runScheduled repeats the batch on the configured schedule until ctx is done.
func (c *cli) runScheduled(ctx context.Context, runner *batch.Runner) error {
	s := scheduler.New(ctx, c.logger)
	s.SetJob(func(ctx context.Context) error {
		_, err := runner.Run(ctx)
		return err
	})
	if err := s.Start(c.cfg.Schedule); err != nil {
		s.Stop()
		return fmt.Errorf("invalid schedule %q: %w", c.cfg.Schedule, err)
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// recorder returns the spreadsheet log, fanned out to the journal when one is configured.
func (c *cli) recorder() (storage.Recorder, error) {
	xlsx, err := storage.NewXLSXRecorder(c.cfg.LogFilePath)
	if err != nil {
		return nil, err
	}
	if c.cfg.JournalPath == "" {
		return xlsx, nil
	}
	journal, err := storage.NewFileRecorder(c.cfg.JournalPath)
	if err != nil {
		return nil, err
	}
	return storage.MultiRecorder{xlsx, journal}, nil
}
