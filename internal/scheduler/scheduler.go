package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/bookclub/backend/internal/config"
	"github.com/bookclub/backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

const jobTimeout = 5 * time.Minute

type TokenPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type AuditExporter interface {
	ExportOnce(ctx context.Context) (int, error)
}

// Scheduler runs the periodic maintenance jobs.
type Scheduler struct {
	cron     *cron.Cron
	tokens   TokenPurger
	exporter AuditExporter
}

func New(tokens TokenPurger, exporter AuditExporter) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		tokens:   tokens,
		exporter: exporter,
	}
}

// Register adds the jobs without starting them. A nil exporter or a
// non-positive export interval leaves the audit export out.
func (s *Scheduler) Register(cfg config.Config) error {
	if s.tokens != nil {
		if _, err := s.cron.AddFunc(cfg.Scheduler.TokenPurgeSpec, s.purgeTokens); err != nil {
			return fmt.Errorf("schedule token purge %q: %w", cfg.Scheduler.TokenPurgeSpec, err)
		}
	}

	if s.exporter != nil && cfg.Audit.ExportInterval > 0 {
		spec := "@every " + cfg.Audit.ExportInterval.String()
		if _, err := s.cron.AddFunc(spec, s.exportAudit); err != nil {
			return fmt.Errorf("schedule audit export %q: %w", spec, err)
		}
	}
	return nil
}

func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info("scheduler_started", map[string]interface{}{"jobs": s.Jobs()})
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logger.Info("scheduler_stopped", nil)
}

func (s *Scheduler) purgeTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	purged, err := s.tokens.PurgeExpired(ctx)
	if err != nil {
		logger.Error("refresh_token_purge_failed", err, nil)
		return
	}
	if purged > 0 {
		logger.Info("refresh_tokens_purged", map[string]interface{}{"count": purged})
	}
}

func (s *Scheduler) exportAudit() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := s.exporter.ExportOnce(ctx); err != nil {
		logger.Error("audit_export_failed", err, nil)
	}
}
