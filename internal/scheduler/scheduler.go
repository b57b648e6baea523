// Package scheduler runs the periodic maintenance jobs of the server.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
)

// JobStatus represents the status of a job.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusScheduled JobStatus = "scheduled"
)

// JobInfo contains information about a scheduled job.
type JobInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Status     JobStatus `json:"status"`
	LastRun    time.Time `json:"lastRun"`
	NextRun    time.Time `json:"nextRun"`
	Schedule   string    `json:"schedule"`
	RunCount   int       `json:"runCount"`
	ErrorCount int       `json:"errorCount"`
	LastError  string    `json:"lastError,omitempty"`
}

// ErrJobNotFound is returned for an unknown job id.
var ErrJobNotFound = errors.New("job not found")

// JobFunc represents a function that can be scheduled.
type JobFunc func(ctx context.Context) error

type job struct {
	info   JobInfo
	gocron gocron.Job
}

// Scheduler manages scheduled jobs.
type Scheduler struct {
	gocron gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.RWMutex
	jobs map[string]*job
}

// New creates a new scheduler.
func New() (*Scheduler, error) {
	gocronScheduler, err := gocron.NewScheduler(gocron.WithLogger(newLogger()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		gocron: gocronScheduler,
		jobs:   make(map[string]*job),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	log.Info("Starting job scheduler")
	s.gocron.Start()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, j := range s.jobs {
		if nextRun, err := j.gocron.NextRun(); err == nil {
			j.info.NextRun = nextRun
			log.Debug("Next run time for job", "id", id, "nextRun", nextRun)
		}
	}
}

// Stop cancels running jobs and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	log.Info("Stopping job scheduler")
	s.cancel()
	return s.gocron.Shutdown()
}

// AddSingletonJob adds a job that runs every interval. A run that is still in
// progress when the next one is due causes the next one to be rescheduled.
func (s *Scheduler) AddSingletonJob(id, name string, interval time.Duration, jobFunc JobFunc) error {
	gj, err := s.gocron.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.wrapJobFunc(id, jobFunc)),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", id, err)
	}

	s.mu.Lock()
	s.jobs[id] = &job{
		info: JobInfo{
			ID:       id,
			Name:     name,
			Status:   JobStatusScheduled,
			Schedule: "every " + interval.String(),
		},
		gocron: gj,
	}
	s.mu.Unlock()

	log.Info("Added job to scheduler", "id", id, "name", name, "interval", interval)
	return nil
}

// RunJobNow triggers a job to run immediately.
func (s *Scheduler) RunJobNow(id string) error {
	s.mu.RLock()
	j, exists := s.jobs[id]
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("job %s: %w", id, ErrJobNotFound)
	}

	log.Info("Manually triggering job", "id", id)
	if err := j.gocron.RunNow(); err != nil {
		return fmt.Errorf("failed to trigger job %s: %w", id, err)
	}
	return nil
}

// GetJob returns a copy of the information about a job.
func (s *Scheduler) GetJob(id string) (JobInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, exists := s.jobs[id]
	if !exists {
		return JobInfo{}, false
	}
	return j.info, true
}

// Jobs returns a copy of the information about every job, ordered by id.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j.info)
	}
	slices.SortFunc(jobs, func(a, b JobInfo) int {
		return strings.Compare(a.ID, b.ID)
	})
	return jobs
}

// wrapJobFunc wraps a job function to update job statistics.
func (s *Scheduler) wrapJobFunc(id string, jobFunc JobFunc) func() {
	return func() {
		s.update(id, func(j *job) {
			j.info.Status = JobStatusRunning
			j.info.LastRun = time.Now()
			j.info.RunCount++
		})

		log.Debug("Starting job", "id", id)
		err := jobFunc(s.ctx)

		s.update(id, func(j *job) {
			if nextRun, nerr := j.gocron.NextRun(); nerr == nil {
				j.info.NextRun = nextRun
			}
			if err != nil {
				log.Error("Job failed", "id", id, "error", err)
				j.info.Status = JobStatusFailed
				j.info.ErrorCount++
				j.info.LastError = err.Error()
				return
			}
			log.Debug("Job completed successfully", "id", id)
			j.info.Status = JobStatusCompleted
			j.info.LastError = ""
		})
	}
}

func (s *Scheduler) update(id string, fn func(j *job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		fn(j)
	}
}
