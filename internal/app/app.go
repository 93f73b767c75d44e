package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/uksgomel/uks_checker/internal/bot"
	"github.com/uksgomel/uks_checker/internal/cache"
	"github.com/uksgomel/uks_checker/internal/config"
	"github.com/uksgomel/uks_checker/internal/logger"
	"github.com/uksgomel/uks_checker/internal/probe"
	"github.com/uksgomel/uks_checker/internal/repository"
	"github.com/uksgomel/uks_checker/internal/scheduler"
)

const defaultShutdownWait = 10 * time.Second

// Monitor is what the scheduler, the bot and the HTTP layer use from the detector.
type Monitor interface {
	scheduler.Prober
	bot.Commands
}

// CommandRunner serves chat commands until its context ends.
type CommandRunner interface {
	Run(ctx context.Context)
}

// App is the application container (immutable dependencies + lifecycle context).
// It is not a request context; handlers should still use gin's request context.
type App struct {
	Config  *config.Config
	Repo    repository.Repository
	Cache   cache.AppStore
	Monitor Monitor
	// Commands is optional; nil disables the chat command loop.
	Commands CommandRunner

	BaseCtx context.Context
	Cancel  context.CancelFunc

	scheduler *scheduler.ProbeScheduler
	wg        sync.WaitGroup
}

func New(cfg *config.Config, repo repository.Repository, store cache.AppStore, mon Monitor, commands CommandRunner) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if repo == nil {
		return nil, errors.New("repo is nil")
	}
	if store == nil {
		return nil, errors.New("cache store is nil")
	}
	if mon == nil {
		return nil, errors.New("monitor is nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		Config:   cfg,
		Repo:     repo,
		Cache:    store,
		Monitor:  mon,
		Commands: commands,
		BaseCtx:  ctx,
		Cancel:   cancel,
	}, nil
}

// Shutdown cancels the lifecycle context and waits, bounded by the server
// shutdown timeout, for running probe cycles and the command loop to return.
func (a *App) Shutdown() {
	if a == nil || a.Cancel == nil {
		return
	}
	a.Cancel()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		if a.scheduler != nil {
			<-a.scheduler.Done()
		}
		close(done)
	}()

	wait := defaultShutdownWait
	if a.Config != nil && a.Config.Server.ShutDownTimeout > 0 {
		wait = a.Config.Server.ShutDownTimeout
	}
	select {
	case <-done:
		logger.WithComponent("app").Info("background workers stopped")
	case <-time.After(wait):
		logger.WithComponent("app").Warnf("background workers still running after %v", wait)
	}
}

// StartWatchers starts the state file watcher, the probe scheduler when
// enabled, and the chat command loop when configured.
func (a *App) StartWatchers() error {
	if err := a.Repo.StartWatcher(a.BaseCtx, a.Cache); err != nil {
		return fmt.Errorf("cannot start state file watcher: %w", err)
	}

	if a.Config.Schedule.Enabled {
		s, err := scheduler.NewProbeScheduler(a.Monitor, Jobs(a.Config.Schedule))
		if err != nil {
			return fmt.Errorf("cannot create probe scheduler: %w", err)
		}
		if err := s.Start(a.BaseCtx); err != nil {
			return fmt.Errorf("cannot start probe scheduler: %w", err)
		}
		a.scheduler = s
	} else {
		logger.WithComponent("app").Info("scheduled probes disabled")
	}

	if a.Commands != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.Commands.Run(a.BaseCtx)
		}()
	}
	return nil
}

// Jobs derives the per-kind poll jobs from the schedule configuration.
func Jobs(cfg config.ScheduleConfig) []scheduler.Job {
	return []scheduler.Job{
		{Kind: probe.KindDocuments, Interval: cfg.DocumentsInterval, Delay: cfg.DocumentsDelay},
		{Kind: probe.KindArticles, Interval: cfg.ArticlesInterval, Delay: cfg.ArticlesDelay},
		{Kind: probe.KindPage, Interval: cfg.PageInterval, Delay: cfg.PageDelay},
	}
}
