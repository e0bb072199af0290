package usecase

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dualchat/internal/domain"
	"dualchat/internal/metrics"
)

const defaultNotificationTTL = 5 * time.Second

// Notifier surfaces non-fatal failures to the user.
type Notifier interface {
	Notify(title, description string, kind domain.NotificationKind)
}

type stopper interface {
	Stop() bool
}

type afterFunc func(d time.Duration, f func()) stopper

func realAfterFunc(d time.Duration, f func()) stopper {
	return time.AfterFunc(d, f)
}

// NotificationCenter holds the single active notification and owns its
// expiry timer.
type NotificationCenter struct {
	ttl      time.Duration
	after    afterFunc
	now      func() time.Time
	onChange func(*domain.Notification)
	logger   *zap.Logger

	mu      sync.Mutex
	current *domain.Notification
	timer   stopper
}

func NewNotificationCenter(ttl time.Duration, onChange func(*domain.Notification), logger *zap.Logger) *NotificationCenter {
	if ttl <= 0 {
		ttl = defaultNotificationTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationCenter{
		ttl:      ttl,
		after:    realAfterFunc,
		now:      time.Now,
		onChange: onChange,
		logger:   logger,
	}
}

// Notify replaces any pending notification and schedules its expiry.
func (c *NotificationCenter) Notify(title, description string, kind domain.NotificationKind) {
	n := &domain.Notification{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Kind:        kind,
		ExpiresAt:   c.now().Add(c.ttl),
	}

	c.mu.Lock()
	c.stopTimerLocked()
	c.current = n
	id := n.ID
	c.timer = c.after(c.ttl, func() { c.expire(id) })
	c.mu.Unlock()

	metrics.NotificationsTotal.WithLabelValues(string(kind)).Inc()
	c.logger.Debug("notification shown",
		zap.String("title", title),
		zap.String("kind", string(kind)),
	)
	c.emit(n)
}

// Dismiss clears the active notification and cancels its expiry.
func (c *NotificationCenter) Dismiss() {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return
	}
	c.stopTimerLocked()
	c.current = nil
	c.mu.Unlock()

	c.emit(nil)
}

// Current returns a copy of the active notification.
func (c *NotificationCenter) Current() (domain.Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return domain.Notification{}, false
	}
	return *c.current, true
}

// Close cancels any pending expiry without emitting.
func (c *NotificationCenter) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
}

func (c *NotificationCenter) expire(id string) {
	c.mu.Lock()
	// A replaced notification's timer may already be running.
	if c.current == nil || c.current.ID != id {
		c.mu.Unlock()
		return
	}
	c.current = nil
	c.timer = nil
	c.mu.Unlock()

	c.emit(nil)
}

func (c *NotificationCenter) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *NotificationCenter) emit(n *domain.Notification) {
	if c.onChange == nil {
		return
	}
	if n == nil {
		c.onChange(nil)
		return
	}
	copied := *n
	c.onChange(&copied)
}
