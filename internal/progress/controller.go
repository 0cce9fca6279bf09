// Package progress owns the (status, progress) pair of one goal while its
// detail screen is mounted. Every intent is applied optimistically and
// persisted; responses are reconciled against the newest issued intent so a
// slow or out-of-order response never overwrites fresher local state.
package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"goaltracker/internal/analytics"
	"goaltracker/internal/goals"
)

var (
	ErrUnmounted        = errors.New("controller unmounted")
	ErrDeleteInProgress = errors.New("delete already in progress")
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultEventBuffer    = 32
	// how long queued events wait for a reader once the controller is unmounted
	eventLinger = 5 * time.Second
)

type Option func(*Controller)

func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) {
		if log != nil {
			c.log = log
		}
	}
}

// WithRequestTimeout bounds each persistence call. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithPreserveProgress keeps a manual in-progress value when in_progress is
// selected again instead of snapping it to 50.
func WithPreserveProgress(preserve bool) Option {
	return func(c *Controller) { c.preserve = preserve }
}

func WithEventBuffer(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.buffer = n
		}
	}
}

type Controller struct {
	svc      goals.Service
	log      *slog.Logger
	timeout  time.Duration
	preserve bool
	buffer   int

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup
	events chan Event
	wake   chan struct{}

	mu               sync.Mutex
	goal             goals.Goal
	confirmed        goals.Pair
	confirmedVersion uint64
	issued           uint64
	settled          uint64
	mounted          bool
	deleting         bool
	queue            []Event
}

// New mounts a controller on an already fetched goal.
func New(svc goals.Service, goal goals.Goal, opts ...Option) *Controller {
	c := &Controller{
		svc:     svc,
		log:     slog.Default(),
		timeout: defaultRequestTimeout,
		buffer:  defaultEventBuffer,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "progress-controller", "goal_id", goal.ID)

	if !goal.Pair().Valid() {
		fixed := goals.PairForProgress(goal.Progress)
		c.log.Warn("loaded goal has inconsistent status, deriving from progress",
			"status", goal.Status, "progress", goal.Progress, "derived", fixed.Status)
		goal = goal.WithPair(fixed)
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.events = make(chan Event, c.buffer)
	c.wake = make(chan struct{}, 1)
	c.goal = goal
	c.confirmed = goal.Pair()
	c.mounted = true
	go c.forward()
	return c
}

// Load fetches the goal and mounts a controller on it.
func Load(ctx context.Context, svc goals.Service, id int64, opts ...Option) (*Controller, error) {
	goal, err := svc.GetGoal(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load goal %d: %w", id, err)
	}
	return New(svc, goal, opts...), nil
}

// CurrentValue is the displayed pair. It always satisfies goals.Pair.Valid.
func (c *Controller) CurrentValue() goals.Pair {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.goal.Pair()
}

// Goal is the local copy of the goal with the displayed pair.
func (c *Controller) Goal() goals.Goal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.goal
}

// Confirmed is the last pair the server acknowledged.
func (c *Controller) Confirmed() goals.Pair {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirmed
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.issued > c.settled {
		return Pending
	}
	return Idle
}

// Events delivers notifications for the host in emission order. No event is
// dropped while the controller is mounted. The channel is closed after
// unmount once everything queued has been delivered.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// SubmitProgress applies a progress intent; the value is clamped to [0,100].
func (c *Controller) SubmitProgress(p int) {
	c.submit("progress", func(goals.Pair) goals.Pair {
		return goals.PairForProgress(p)
	})
}

// SubmitStatus applies a status intent, snapping progress to the status.
func (c *Controller) SubmitStatus(s goals.Status) error {
	if !s.IsValid() {
		return fmt.Errorf("submit status %q: %w", s, goals.ErrValidation)
	}
	c.submit("status", func(current goals.Pair) goals.Pair {
		return goals.PairForStatus(s, current, c.preserve)
	})
	return nil
}

func (c *Controller) submit(kind string, derive func(goals.Pair) goals.Pair) {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		c.log.Debug("intent after unmount ignored", "kind", kind)
		return
	}
	current := c.goal.Pair()
	next := derive(current)
	if next == current {
		c.mu.Unlock()
		return
	}
	c.goal = c.goal.WithPair(next)
	c.issued++
	version := c.issued
	id := c.goal.ID
	c.mu.Unlock()

	c.log.Debug("intent issued", "kind", kind, "version", version, "pair", next)
	c.wg.Go(func() {
		c.dispatch(version, id, next)
	})
}

func (c *Controller) dispatch(version uint64, id int64, pair goals.Pair) {
	ctx, cancel := c.requestContext(c.ctx)
	defer cancel()
	ctx = goals.WithIdempotencyKey(ctx, analytics.NewIdempotencyKey())

	updated, err := c.svc.UpdateGoal(ctx, id, goals.PatchFor(pair))
	c.reconcile(version, updated, err)
}

func (c *Controller) reconcile(version uint64, updated goals.Goal, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.mounted {
		return
	}
	latest := version == c.issued

	if err != nil {
		if !latest {
			c.log.Warn("superseded update failed", "version", version, "latest", c.issued, "err", err)
			return
		}
		c.settled = version
		c.goal = c.goal.WithPair(c.confirmed)
		c.log.Warn("update failed, reverted", "version", version, "reverted_to", c.confirmed, "err", err)
		c.emitLocked(Event{Kind: EventUpdateFailed, Pair: c.confirmed, Err: err})
		return
	}

	server := updated.Pair()
	if !server.Valid() {
		c.log.Warn("server returned inconsistent pair", "pair", server)
		server = goals.PairForProgress(server.Progress)
		updated = updated.WithPair(server)
	}
	newer := version > c.confirmedVersion
	if newer {
		c.confirmed = server
		c.confirmedVersion = version
	}
	if !latest {
		// The latest intent already failed and the display shows its revert
		// target, which this response has just replaced on the server.
		if newer && c.settled == c.issued {
			c.goal = updated.WithPair(server)
			c.log.Info("superseded update landed after revert", "version", version, "pair", server)
			c.emitLocked(Event{Kind: EventConfirmed, Pair: server})
			return
		}
		c.log.Debug("stale response discarded", "version", version, "latest", c.issued)
		return
	}

	c.settled = version
	c.goal = updated
	c.emitLocked(Event{Kind: EventConfirmed, Pair: server})
}

// ConfirmDelete sends the delete request. The caller is responsible for the
// confirmation prompt. On success the host receives EventNavigateBack exactly
// once and the controller unmounts.
func (c *Controller) ConfirmDelete(ctx context.Context) error {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return ErrUnmounted
	}
	if c.deleting {
		c.mu.Unlock()
		return ErrDeleteInProgress
	}
	c.deleting = true
	id := c.goal.ID
	c.mu.Unlock()

	reqCtx, cancel := c.requestContext(ctx)
	err := c.svc.DeleteGoal(reqCtx, id)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleting = false

	if !c.mounted {
		return ErrUnmounted
	}
	if err != nil {
		err = fmt.Errorf("delete goal %d: %w", id, err)
		c.log.Warn("delete failed", "err", err)
		c.emitLocked(Event{Kind: EventDeleteFailed, Pair: c.goal.Pair(), Err: err})
		return err
	}

	c.log.Info("goal deleted")
	c.emitLocked(Event{Kind: EventNavigateBack, Pair: c.goal.Pair()})
	c.unmountLocked()
	return nil
}

// Unmount releases the goal. Results of in-flight requests are ignored.
func (c *Controller) Unmount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unmountLocked()
}

// Wait blocks until every dispatched update has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) unmountLocked() {
	if !c.mounted {
		return
	}
	c.mounted = false
	c.cancel()
	c.signal()
}

func (c *Controller) emitLocked(ev Event) {
	c.queue = append(c.queue, ev)
	c.signal()
}

func (c *Controller) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// forward moves queued events onto the events channel. It owns closing the
// channel.
func (c *Controller) forward() {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			mounted := c.mounted
			c.mu.Unlock()
			if !mounted {
				close(c.events)
				return
			}
			<-c.wake
			continue
		}
		ev := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		if !c.deliver(ev) {
			c.mu.Lock()
			dropped := len(c.queue) + 1
			c.queue = nil
			c.mu.Unlock()
			c.log.Warn("no reader after unmount, dropping events", "count", dropped)
			close(c.events)
			return
		}
	}
}

func (c *Controller) deliver(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.ctx.Done():
	}

	timer := time.NewTimer(eventLinger)
	defer timer.Stop()
	select {
	case c.events <- ev:
		return true
	case <-timer.C:
		return false
	}
}

func (c *Controller) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(parent, c.timeout)
	}
	return context.WithCancel(parent)
}
