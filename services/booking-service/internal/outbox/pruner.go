package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner removes published outbox rows past their retention on a cron schedule.
type Pruner struct {
	repo      *Repository
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewPruner(repo *Repository, retention time.Duration, logger *slog.Logger) *Pruner {
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &Pruner{repo: repo, retention: retention, logger: logger, now: time.Now}
}

// Run blocks until ctx is done. schedule uses standard cron syntax or
// descriptors such as "@hourly".
func (p *Pruner) Run(ctx context.Context, schedule string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, func() { p.PruneOnce(ctx) }); err != nil {
		return err
	}
	c.Start()
	p.logger.Info("outbox pruner scheduled", "schedule", schedule, "retention", p.retention.String())

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (p *Pruner) PruneOnce(ctx context.Context) {
	cutoff := p.now().Add(-p.retention)
	n, err := p.repo.Prune(ctx, cutoff)
	if err != nil {
		p.logger.Error("outbox prune failed", "err", err)
		return
	}
	if n > 0 {
		p.logger.Info("outbox pruned", "deleted", n, "cutoff", cutoff.UTC().Format(time.RFC3339))
	}
}
