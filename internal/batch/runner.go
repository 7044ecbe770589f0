// Package batch sends every user message of a run to the chat service once,
// logging each outcome as it goes.
package batch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"ai-batcher/internal/llm"
	"ai-batcher/internal/prompts"
	"ai-batcher/internal/selector"
	"ai-batcher/internal/storage"
)

// Options wires a Runner. Client, Selector and Recorder are required.
type Options struct {
	SystemPath string
	UserPath   string
	Client     llm.Client
	Selector   *selector.Selector
	Recorder   storage.Recorder
	Console    *Console
	Logger     *zap.Logger
	// Limiter paces chat calls; nil means no pacing.
	Limiter *rate.Limiter
}

type Runner struct {
	opts    Options
	console *Console
	logger  *zap.Logger
	limiter *rate.Limiter
}

// Result describes one completed or interrupted run.
type Result struct {
	RunID     string
	Total     int
	Succeeded int
	Failed    int
	Responses []llm.Response
}

func New(opts Options) *Runner {
	r := &Runner{opts: opts, console: opts.Console, logger: opts.Logger, limiter: opts.Limiter}
	if r.console == nil {
		r.console = NewConsole(nil)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.limiter == nil {
		r.limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return r
}

// Run processes the user messages in file order. It returns a nil Result when
// the message files cannot be loaded; nothing is sent or logged in that case.
// A failed chat call is logged and the run moves on. A log write failure or a
// cancelled context ends the run early with the partial Result.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	log := r.logger.With(zap.String("run_id", runID))

	r.console.Reading()
	set, err := prompts.Load(r.opts.SystemPath, r.opts.UserPath)
	if err != nil {
		r.console.LoadFailed(err)
		log.Error("failed to load messages", zap.Error(err))
		return nil, err
	}
	r.console.SystemLoaded(len(set.System))
	r.console.UserLoaded(len(set.User))

	res := &Result{RunID: runID, Total: len(set.User)}
	interactions := storage.NewInteractionLogger(r.opts.Recorder, runID)
	log.Info("batch started", zap.Int("system_messages", len(set.System)), zap.Int("user_messages", res.Total))

	r.console.Starting()
	for i, user := range set.User {
		idx := i + 1
		if err := r.limiter.Wait(ctx); err != nil {
			r.console.Cancelled(idx, res.Total)
			return res, fmt.Errorf("batch interrupted: %w", err)
		}

		r.console.Processing(idx, res.Total, user)
		system, empty, err := r.opts.Selector.Select(set.System)
		if err != nil {
			return res, err
		}
		r.console.SystemChosen(system, empty)

		r.console.CallingAPI()
		resp, err := r.opts.Client.Generate(ctx, llm.Conversation(system, user))
		if err != nil {
			if ctx.Err() != nil {
				r.console.Cancelled(idx, res.Total)
				return res, fmt.Errorf("batch interrupted: %w", ctx.Err())
			}
			r.console.CallFailed(err)
			log.Warn("chat call failed", zap.Int("index", idx), zap.Error(err))
			if lerr := interactions.LogFailure(user, system, err); lerr != nil {
				log.Error("failed to log interaction", zap.Int("index", idx), zap.Error(lerr))
				return res, fmt.Errorf("log message %d: %w", idx, lerr)
			}
			res.Failed++
			continue
		}

		r.console.Logging()
		if err := interactions.LogSuccess(user, system, resp); err != nil {
			log.Error("failed to log interaction", zap.Int("index", idx), zap.Error(err))
			return res, fmt.Errorf("log message %d: %w", idx, err)
		}
		res.Responses = append(res.Responses, resp)
		res.Succeeded++
		r.console.Completed(idx, res.Total)
		log.Debug("message completed", zap.Int("index", idx), zap.Duration("total_duration", resp.TotalDuration))
	}

	r.console.Done(res.Succeeded, res.Total)
	log.Info("batch finished", zap.Int("succeeded", res.Succeeded), zap.Int("failed", res.Failed))
	return res, nil
}
