package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ai-batcher/internal/config"
)

// cli holds the flags and the state shared by the commands of one invocation.
type cli struct {
	envFile    string
	verbose    bool
	systemFile string
	userFile   string
	logFile    string
	journal    string
	schedule   string
	seed       int64

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "batcher",
		Short: "Send every user message to a local chat model and log the replies",
		Long: `batcher reads system_message.txt and user_message.txt, sends each user
message to the chat endpoint once with a randomly chosen system message
(or an empty one), and appends every outcome to chat_logs.xlsx.

Set ENDPOINT to the base URL of the chat service, for example
http://localhost:11434.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
		RunE: c.runBatch,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&c.logFile, "log-file", "", "spreadsheet log (overrides LOG_FILE_PATH)")
	pf.StringVar(&c.journal, "journal", "", "JSONL journal (overrides JOURNAL_PATH)")

	f := root.Flags()
	f.StringVar(&c.systemFile, "system-file", "", "system message file (overrides SYSTEM_MESSAGE_PATH)")
	f.StringVar(&c.userFile, "user-file", "", "user message file (overrides USER_MESSAGE_PATH)")
	f.StringVar(&c.schedule, "schedule", "", "cron schedule for repeated runs (overrides SCHEDULE)")
	f.Int64Var(&c.seed, "seed", 0, "seed for system message selection; seeded from the clock when unset")

	root.AddCommand(newExportCmd(c), newStatsCmd(c))
	return root
}

// setup loads the dotenv file, builds the logger and parses the environment.
// Validation is left to the commands that need a chat client.
func (c *cli) setup(cmd *cobra.Command, args []string) error {
	zcfg := zap.NewProductionConfig()
	if c.verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	c.logger = logger

	if err := godotenv.Load(c.envFile); err != nil {
		if cmd.Flags().Changed("env-file") {
			return fmt.Errorf("load %s: %w", c.envFile, err)
		}
		logger.Warn("env file not loaded", zap.String("path", c.envFile), zap.Error(err))
	}

	cfg, err := config.New()
	if err != nil {
		return err
	}
	if c.logFile != "" {
		cfg.LogFilePath = c.logFile
	}
	if c.journal != "" {
		cfg.JournalPath = c.journal
	}
	if c.systemFile != "" {
		cfg.SystemMessagePath = c.systemFile
	}
	if c.userFile != "" {
		cfg.UserMessagePath = c.userFile
	}
	if c.schedule != "" {
		cfg.Schedule = c.schedule
	}
	c.cfg = cfg
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
