// Package scheduler runs the periodic re-ranking job for stale deals.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/dealscout/dealscout/config"
	"github.com/dealscout/dealscout/ranker"
	"github.com/dealscout/dealscout/store"
)

// Scheduler owns the cron runner and the refresh task.
type Scheduler struct {
	cron   *cron.Cron
	store  *store.Store
	ranker *ranker.Ranker
	cfg    config.RefreshConfig
	ctx    context.Context
}

// New creates a Scheduler. Nothing runs until Register and Start.
func New(ctx context.Context, st *store.Store, rk *ranker.Ranker, cfg config.RefreshConfig) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		store:  st,
		ranker: rk,
		cfg:    cfg,
		ctx:    ctx,
	}
}

// Register installs the refresh task when a cron spec is configured.
func (s *Scheduler) Register() error {
	if s.cfg.CronSpec == "" {
		slog.Info("refresh job disabled (no cron spec)")
		return nil
	}
	if _, err := s.cron.AddFunc(s.cfg.CronSpec, s.refreshTask); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron runner.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started", "cron", s.cfg.CronSpec)
}

// Stop stops the cron runner; running jobs finish first.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("scheduler stopped")
}

// RunRefreshNow executes the refresh task immediately (manual trigger).
func (s *Scheduler) RunRefreshNow() {
	s.refreshTask()
}

// refreshTask re-ranks deals whose last ranking is older than the
// configured max age. Per-deal failures are logged and skipped; the
// estimator's rate gate throttles the run.
func (s *Scheduler) refreshTask() {
	slog.Info("running refresh task", "max_age", s.cfg.MaxAge)

	deals, err := s.store.Stale(s.ctx, s.cfg.MaxAge, s.cfg.BatchSize)
	if err != nil {
		slog.Error("refresh: load stale deals", "error", err)
		return
	}
	if len(deals) == 0 {
		slog.Info("refresh: no stale deals")
		return
	}

	refreshed := 0
	for _, deal := range deals {
		if s.ctx.Err() != nil {
			return
		}
		in := ranker.Input{
			ItemName:     deal.ItemName,
			Restaurant:   deal.Restaurant,
			Price:        deal.Price,
			Description:  deal.Description,
			PortionSize:  deal.PortionSize,
			Calories:     deal.Calories,
			ProteinGrams: deal.ProteinGrams,
		}
		// Estimated nutrition is re-estimated, not replayed.
		if deal.NutritionByAI {
			in.Calories = nil
			in.ProteinGrams = nil
		}
		result := s.ranker.Score(s.ctx, in)
		if err := s.store.SaveRanking(s.ctx, deal.ID, result.ScoreResult, result.Estimated); err != nil {
			slog.Error("refresh: save ranking", "deal_id", deal.ID, "error", err)
			continue
		}
		refreshed++
	}
	slog.Info("refresh task complete", "stale", len(deals), "refreshed", refreshed)
}
