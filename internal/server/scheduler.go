package server

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/anchormap/anchormap/internal/store"
)

// Scheduler triggers full index rebuilds on a cron schedule so the
// suggestions keep up with newly published posts.
type Scheduler struct {
	Cron   string
	Store  *store.Store
	Svc    Service
	Stop   chan struct{}
	Logger *log.Logger

	building atomic.Bool
}

func (s *Scheduler) Start() {
	ticker := time.NewTicker(time.Minute)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	if s.building.Load() {
		return
	}
	ctx := context.Background()

	var last *time.Time
	run, err := s.Store.LatestBuildRun(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// never built, due now
	case err != nil:
		s.Logger.Printf("latest build run: %v", err)
		return
	default:
		if run.Status == store.BuildStatusRunning {
			return
		}
		last = run.FinishedAt
	}

	if !isDue(s.Cron, last) {
		return
	}

	if !s.building.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer s.building.Store(false)
		summary, err := s.Svc.Build(ctx)
		if err != nil {
			s.Logger.Printf("scheduled build failed: %v", err)
			return
		}
		s.Logger.Printf("scheduled build %s: %d indexed, %d failed", summary.RunID, summary.PagesIndexed, summary.PagesFailed)
	}()
}

// isDue reports whether a rebuild with cronSpec should run now given
// the last completed run. Supports "@daily", "@hourly", and standard
// 5-field cron expressions; an invalid expression falls back to daily.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}
