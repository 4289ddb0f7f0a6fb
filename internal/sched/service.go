// Package sched runs the background jobs: the dynamic-DNS refresh and the
// manual check-in reminder, on cron expressions from the config.
package sched

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

type Job struct {
	Name string
	Expr string
	Run  func(ctx context.Context) error
}

type Service struct {
	mu      sync.Mutex
	cron    *rcron.Cron
	jobs    []Job
	timeout time.Duration
}

func NewService() *Service {
	return &Service{timeout: 5 * time.Minute}
}

// Register queues a job to be scheduled on Start. Jobs with an empty
// expression are skipped, so unconfigured features simply stay off.
func (s *Service) Register(name, expr string, run func(ctx context.Context) error) {
	if expr == "" {
		log.Printf("[sched] %s has no schedule, skipping", name)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, Job{Name: name, Expr: expr, Run: run})
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cron = rcron.New()
	for _, job := range s.jobs {
		job := job
		_, err := s.cron.AddFunc(job.Expr, func() {
			runCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			log.Printf("[sched] running %s", job.Name)
			if err := job.Run(runCtx); err != nil {
				log.Printf("[sched] %s failed: %v", job.Name, err)
			}
		})
		if err != nil {
			return fmt.Errorf("schedule %s (%q): %w", job.Name, job.Expr, err)
		}
	}

	s.cron.Start()
	log.Printf("[sched] started with %d jobs", len(s.jobs))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
		log.Printf("[sched] stopped")
	}
}

// JobCount reports how many jobs are registered.
func (s *Service) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}
