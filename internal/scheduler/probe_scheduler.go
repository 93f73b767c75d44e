package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/uksgomel/uks_checker/internal/logger"
	"github.com/uksgomel/uks_checker/internal/monitor"
	"github.com/uksgomel/uks_checker/internal/probe"
)

// Prober runs one detection cycle for a kind.
type Prober interface {
	Probe(ctx context.Context, kind probe.Kind) monitor.Outcome
}

// Job is the cadence of one kind: first run after Delay, then every Interval.
type Job struct {
	Kind     probe.Kind
	Interval time.Duration
	Delay    time.Duration
}

// ProbeScheduler runs every kind on its own cron entry. A tick that arrives
// while the previous run of the same kind is still going is skipped.
type ProbeScheduler struct {
	prober Prober
	jobs   []Job

	cron    *cron.Cron
	wrapped map[probe.Kind]cron.Job
	done    chan struct{}

	mu      sync.Mutex
	started bool
}

func NewProbeScheduler(p Prober, jobs []Job) (*ProbeScheduler, error) {
	if p == nil {
		return nil, errors.New("prober is required")
	}
	seen := map[probe.Kind]bool{}
	for _, j := range jobs {
		if j.Interval <= 0 {
			return nil, fmt.Errorf("%s: interval must be positive", j.Kind)
		}
		if j.Delay < 0 {
			return nil, fmt.Errorf("%s: delay must not be negative", j.Kind)
		}
		if seen[j.Kind] {
			return nil, fmt.Errorf("%s: scheduled twice", j.Kind)
		}
		seen[j.Kind] = true
	}

	cronLog := cron.PrintfLogger(logger.WithComponent("sched"))
	return &ProbeScheduler{
		prober:  p,
		jobs:    jobs,
		cron:    cron.New(cron.WithLogger(cronLog)),
		wrapped: map[probe.Kind]cron.Job{},
		done:    make(chan struct{}),
	}, nil
}

// Start schedules all jobs and returns immediately. Cancelling ctx stops
// the scheduler; Done is closed once running jobs have returned.
func (s *ProbeScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("scheduler already started")
	}
	s.started = true

	log := logger.WithComponent("sched")
	cronLog := cron.PrintfLogger(log)
	chain := func() cron.Chain {
		return cron.NewChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog))
	}

	var initial sync.WaitGroup
	timers := make([]*time.Timer, 0, len(s.jobs))
	for _, j := range s.jobs {
		kind := j.Kind
		job := chain().Then(cron.FuncJob(func() { s.run(ctx, kind) }))
		s.wrapped[kind] = job

		s.cron.Schedule(cron.Every(j.Interval), job)
		initial.Add(1)
		timers = append(timers, time.AfterFunc(j.Delay, func() {
			defer initial.Done()
			job.Run()
		}))
		log.Infof("scheduled %s every %v, first run in %v", kind, j.Interval, j.Delay)
	}
	s.cron.Start()

	go func() {
		<-ctx.Done()
		for _, t := range timers {
			if t.Stop() {
				initial.Done()
			}
		}
		<-s.cron.Stop().Done()
		initial.Wait()
		log.Info("scheduler stopped")
		close(s.done)
	}()
	return nil
}

// Done is closed after the scheduler stopped and in-flight jobs finished.
func (s *ProbeScheduler) Done() <-chan struct{} {
	return s.done
}

func (s *ProbeScheduler) run(ctx context.Context, kind probe.Kind) {
	if ctx.Err() != nil {
		return
	}
	out := s.prober.Probe(ctx, kind)
	logger.WithKind("sched", string(kind)).Debugf("tick finished with status %s", out.Status)
}
