// internal/scheduler/supervisor.go
// Runs periodic background tasks, each isolated from the others' failures

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/imadgeboyega/kiekky-matching/internal/common/database"
)

// Task is one periodic job
type Task struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration // per run; zero means no limit
	Run      func(ctx context.Context) error
}

// ErrTaskPanicked wraps a panic recovered from a task run
var ErrTaskPanicked = errors.New("task panicked")

// Supervisor runs every task on its own ticker until stopped
type Supervisor struct {
	tasks        []Task
	maxAttempts  int
	retryBackoff time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewSupervisor creates a supervisor for tasks. Runs failing with an
// unavailable store are retried up to three times with doubling backoff.
func NewSupervisor(tasks ...Task) *Supervisor {
	return &Supervisor{
		tasks:        tasks,
		maxAttempts:  3,
		retryBackoff: time.Second,
	}
}

// Start launches one goroutine per task. Each task runs once immediately,
// then on every tick.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.loop(ctx, task)
	}
	log.Printf("Background supervisor started with %d tasks", len(s.tasks))
}

// Stop cancels every task and waits for in-flight runs to return
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	log.Println("Background supervisor stopped")
}

func (s *Supervisor) loop(ctx context.Context, task Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	s.RunOnce(ctx, task)
	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx, task)
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce executes task with panic recovery and retries. Failures are
// logged and counted, never propagated.
func (s *Supervisor) RunOnce(ctx context.Context, task Task) error {
	start := time.Now()
	backoff := s.retryBackoff

	var err error
retry:
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.runSafely(ctx, task)
		if err == nil || !errors.Is(err, database.ErrStoreUnavailable) || attempt == s.maxAttempts {
			break
		}

		log.Printf("Task %s: store unavailable (attempt %d/%d), retrying in %v",
			task.Name, attempt, s.maxAttempts, backoff)
		recordRetry(task.Name)
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			err = ctx.Err()
			break retry
		}
	}

	recordRun(task.Name, time.Since(start), err)
	if err != nil && ctx.Err() == nil {
		log.Printf("Task %s failed: %v", task.Name, err)
	}
	return err
}

func (s *Supervisor) runSafely(ctx context.Context, task Task) (err error) {
	if task.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Task %s panicked: %v\n%s", task.Name, r, debug.Stack())
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()

	return task.Run(ctx)
}
