package cronrunner

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner is a thin wrapper over robfig/cron that threads a base context into
// every job, so a stop request cancels work that honors cancellation.
type Runner struct {
	cron    *cron.Cron
	logger  *zap.Logger
	baseCtx context.Context
}

func New(logger *zap.Logger, baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Runner{
		cron:    cron.New(),
		logger:  logger,
		baseCtx: baseCtx,
	}
}

func (r *Runner) Add(spec string, job func(context.Context)) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() {
		if r == nil || r.baseCtx == nil {
			job(context.Background())
			return
		}
		job(r.baseCtx)
	})
}

func (r *Runner) Start() {
	if r.logger != nil {
		r.logger.Info("cron started")
	}
	r.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish, which lets an
// in-flight scan cycle complete its reconciliation before shutdown.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	if r.logger != nil {
		r.logger.Info("cron stopped")
	}
}
