package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/rendis/ticketflow/internal/logging"
)

var (
	// ErrPoolShutdown is returned when an instance is submitted to a shut-down pool.
	ErrPoolShutdown = errors.New("instance pool is shut down")
	// ErrInstanceRunning is returned when an instance id is submitted while a
	// run of that instance is still in flight.
	ErrInstanceRunning = errors.New("instance is already running")
)

// PoolMetrics is a snapshot of the instance pool.
type PoolMetrics struct {
	Running  int   `json:"running"`
	Finished int64 `json:"finished"`
	Panicked int64 `json:"panicked"`
}

// InstancePool runs workflow instances on their own goroutines, at most size
// at once. An instance id is never run twice concurrently, so the actions of
// one instance stay sequential even when the scheduler redelivers it.
type InstancePool struct {
	slots  chan struct{}
	stop   chan struct{}
	wg     sync.WaitGroup
	logger *slog.Logger

	mu       sync.Mutex
	closed   bool
	running  map[string]struct{}
	finished int64
	panicked int64
}

// NewInstancePool creates a pool running at most size instances concurrently.
func NewInstancePool(size int, logger *slog.Logger) *InstancePool {
	return &InstancePool{
		slots:   make(chan struct{}, max(size, 1)),
		stop:    make(chan struct{}),
		running: make(map[string]struct{}),
		logger:  logging.OrDefault(logger),
	}
}

// Submit starts fn for instanceID. It waits for a free slot and gives up when
// ctx is done or the pool shuts down. fn receives ctx.
func (p *InstancePool) Submit(ctx context.Context, instanceID string, fn func(ctx context.Context)) error {
	if err := p.claim(instanceID); err != nil {
		return err
	}
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		p.release(instanceID)
		return ctx.Err()
	case <-p.stop:
		p.release(instanceID)
		return ErrPoolShutdown
	}
	go p.run(ctx, instanceID, fn)
	return nil
}

// claim reserves instanceID. wg.Add happens under the lock so Shutdown cannot
// miss an instance that is about to start.
func (p *InstancePool) claim(instanceID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolShutdown
	}
	if _, busy := p.running[instanceID]; busy {
		return fmt.Errorf("%w: %s", ErrInstanceRunning, instanceID)
	}
	p.running[instanceID] = struct{}{}
	p.wg.Add(1)
	return nil
}

func (p *InstancePool) release(instanceID string) {
	p.mu.Lock()
	delete(p.running, instanceID)
	p.mu.Unlock()
	p.wg.Done()
}

func (p *InstancePool) run(ctx context.Context, instanceID string, fn func(context.Context)) {
	defer func() {
		r := recover()
		p.mu.Lock()
		if r != nil {
			p.panicked++
		} else {
			p.finished++
		}
		p.mu.Unlock()
		if r != nil {
			p.logger.ErrorContext(ctx, "instance panicked", "instance_id", instanceID, "panic", fmt.Sprint(r))
		}
		<-p.slots
		p.release(instanceID)
	}()
	fn(ctx)
}

// Running returns the ids of the instances currently claimed, sorted.
func (p *InstancePool) Running() []string {
	p.mu.Lock()
	ids := make([]string, 0, len(p.running))
	for id := range p.running {
		ids = append(ids, id)
	}
	p.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Wait blocks until every submitted instance has finished.
func (p *InstancePool) Wait() {
	p.wg.Wait()
}

// Shutdown refuses new submissions and waits for running instances.
func (p *InstancePool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.stop)
	p.mu.Unlock()

	p.wg.Wait()
}

// Metrics returns a snapshot of the pool counters.
func (p *InstancePool) Metrics() PoolMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolMetrics{
		Running:  len(p.running),
		Finished: p.finished,
		Panicked: p.panicked,
	}
}
