package onboarding

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/riskibarqy/dashboard-bootstrap/internal/platform/logging"
)

const (
	DefaultRevealDelay  = time.Second
	DefaultWriteTimeout = 5 * time.Second
)

type State int

const (
	StateHidden State = iota
	StatePendingReveal
	StateVisible
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateHidden:
		return "hidden"
	case StatePendingReveal:
		return "pending_reveal"
	case StateVisible:
		return "visible"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

type Action string

const (
	ActionComplete Action = "complete"
	ActionSkip     Action = "skip"
)

func ParseAction(raw string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ActionComplete:
		return ActionComplete, nil
	case ActionSkip:
		return ActionSkip, nil
	default:
		return "", fmt.Errorf("unknown onboarding action %q", raw)
	}
}

// Persister records completion for a user.
type Persister interface {
	MarkOnboardingCompleted(ctx context.Context, userID string) error
}

type ControllerConfig struct {
	UserID       string
	RevealDelay  time.Duration
	WriteTimeout time.Duration
	Persister    Persister
	Clock        Clock
	// Dispatch runs the completion write; defaults to a new goroutine.
	Dispatch func(func())
	// OnChange observes every transition, outside the controller lock.
	OnChange func(from, to State)
	Logger   *logging.Logger
}

// Controller owns the overlay lifecycle for one mount:
// Hidden -> PendingReveal -> Visible -> Completed.
type Controller struct {
	userID       string
	revealDelay  time.Duration
	writeTimeout time.Duration
	persister    Persister
	clock        Clock
	dispatch     func(func())
	onChange     func(from, to State)
	logger       *logging.Logger

	mu        sync.Mutex
	state     State
	mounted   bool
	unmounted bool
	timer     Timer
}

func NewController(cfg ControllerConfig) (*Controller, error) {
	cfg.UserID = strings.TrimSpace(cfg.UserID)
	if cfg.UserID == "" {
		return nil, fmt.Errorf("controller user id is required")
	}
	if cfg.Persister == nil {
		return nil, fmt.Errorf("controller persister is required")
	}
	if cfg.RevealDelay <= 0 {
		cfg.RevealDelay = DefaultRevealDelay
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.Dispatch == nil {
		cfg.Dispatch = func(f func()) { go f() }
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}

	return &Controller{
		userID:       cfg.UserID,
		revealDelay:  cfg.RevealDelay,
		writeTimeout: cfg.WriteTimeout,
		persister:    cfg.Persister,
		clock:        cfg.Clock,
		dispatch:     cfg.Dispatch,
		onChange:     cfg.OnChange,
		logger:       cfg.Logger.Named("onboarding"),
		state:        StateHidden,
	}, nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Visible reports whether the overlay should currently be shown.
func (c *Controller) Visible() bool {
	return c.State() == StateVisible
}

// Mount starts the lifecycle. With showOnboarding false the controller stays Hidden.
// Only the first call has any effect.
func (c *Controller) Mount(ctx context.Context, showOnboarding bool) {
	c.mu.Lock()
	if c.mounted || c.unmounted {
		c.mu.Unlock()
		return
	}
	c.mounted = true
	if !showOnboarding {
		c.mu.Unlock()
		return
	}

	from := c.setStateLocked(StatePendingReveal)
	c.timer = c.clock.AfterFunc(c.revealDelay, c.reveal)
	c.mu.Unlock()

	c.logger.DebugContext(ctx, "onboarding reveal scheduled", "user_id", c.userID, "delay", c.revealDelay)
	c.notify(from, StatePendingReveal)
}

// Unmount cancels a pending reveal. Later timer fires and actions are ignored;
// a completion write already dispatched still runs.
func (c *Controller) Unmount() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unmounted {
		return
	}
	c.unmounted = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) Complete(ctx context.Context) bool {
	return c.finish(ctx, ActionComplete)
}

func (c *Controller) Skip(ctx context.Context) bool {
	return c.finish(ctx, ActionSkip)
}

// Finish applies action from Visible and reports whether it was accepted.
func (c *Controller) Finish(ctx context.Context, action Action) bool {
	return c.finish(ctx, action)
}

func (c *Controller) reveal() {
	c.mu.Lock()
	if c.unmounted || c.state != StatePendingReveal {
		c.mu.Unlock()
		return
	}
	from := c.setStateLocked(StateVisible)
	c.timer = nil
	c.mu.Unlock()

	c.notify(from, StateVisible)
}

func (c *Controller) finish(ctx context.Context, action Action) bool {
	c.mu.Lock()
	if c.unmounted || c.state != StateVisible {
		c.mu.Unlock()
		return false
	}
	from := c.setStateLocked(StateCompleted)
	c.mu.Unlock()

	c.notify(from, StateCompleted)
	c.persist(ctx, action)
	return true
}

func (c *Controller) persist(ctx context.Context, action Action) {
	if ctx == nil {
		ctx = context.Background()
	}
	detached := context.WithoutCancel(ctx)
	userID := c.userID

	c.dispatch(func() {
		writeCtx, cancel := context.WithTimeout(detached, c.writeTimeout)
		defer cancel()

		if err := c.persister.MarkOnboardingCompleted(writeCtx, userID); err != nil {
			c.logger.ErrorContext(writeCtx, "onboarding completion write failed", "user_id", userID, "action", string(action), "error", err)
			return
		}
		c.logger.InfoContext(writeCtx, "onboarding completion persisted", "user_id", userID, "action", string(action))
	})
}

func (c *Controller) setStateLocked(to State) State {
	from := c.state
	c.state = to
	return from
}

func (c *Controller) notify(from, to State) {
	if c.onChange != nil {
		c.onChange(from, to)
	}
}
