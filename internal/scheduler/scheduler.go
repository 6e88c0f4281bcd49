package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	benefitdomain "github.com/smallbiznis/perkhub/internal/benefit/domain"
	"github.com/smallbiznis/perkhub/internal/clock"
	obsmetrics "github.com/smallbiznis/perkhub/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const jobExpireBenefits = "expire_benefits"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    benefitdomain.Repository
	Clock   clock.Clock
	Metrics *obsmetrics.Metrics `optional:"true"`
	Config  Config              `optional:"true"`
}

// Scheduler runs periodic maintenance over the catalog.
type Scheduler struct {
	db      *gorm.DB
	log     *zap.Logger
	cfg     Config
	repo    benefitdomain.Repository
	clock   clock.Clock
	metrics *obsmetrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Repo == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:      p.DB,
		log:     p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:     p.Config.withDefaults(),
		repo:    p.Repo,
		clock:   p.Clock,
		metrics: p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	log := s.log.With(zap.String("job", name))
	err := fn(ctx)
	outcome := jobOutcome(err)
	s.metrics.RecordJobRun(parent, name, outcome, time.Since(start))

	switch outcome {
	case "ok":
		return nil
	case "timeout":
		// Soft timeout; the next tick resumes the work.
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	default:
		return fmt.Errorf("%s: %w", name, err)
	}
}

func jobOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "error"
	}
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{jobExpireBenefits, s.ExpireBenefitsJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.JobTimeout, job.Run))
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// ExpireBenefitsJob moves benefits whose expires_at has passed to EXPIRED in batches.
// Claims already taken stay redeemable; only the catalog status changes.
func (s *Scheduler) ExpireBenefitsJob(ctx context.Context) error {
	now := s.clock.Now()
	var total int64

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		ids, err := s.repo.ListLapsedBenefitIDs(ctx, s.db, now, s.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			break
		}

		updated, err := s.repo.MarkBenefitsExpired(ctx, s.db, ids, now)
		if err != nil {
			return err
		}
		total += updated
		s.metrics.RecordBenefitsExpired(ctx, updated)

		if len(ids) < s.cfg.BatchSize {
			break
		}
	}

	if total > 0 {
		s.log.Info("benefits expired",
			zap.Int64("count", total),
			zap.Time("as_of", now),
		)
	}
	return nil
}
