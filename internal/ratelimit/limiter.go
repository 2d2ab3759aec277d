package ratelimit

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mehmetcc/campaign-auth-service/internal/response"
)

const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"

	// logTimeout bounds the write after the response has been produced.
	logTimeout = 2 * time.Second
)

// Decision is the outcome of a rate check. Limit, Remaining and Reset are
// reported to the client whether or not the request is allowed.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
	Window    time.Duration
}

// SubjectFunc extracts the authenticated principal placed in the gin context
// by the auth guards, if any.
type SubjectFunc func(c *gin.Context) (userType string, userID uint, ok bool)

// Limiter is a sliding-window rate limiter over the durable request log. It
// holds no counters of its own, so every process sees the same state. The
// read-then-log sequence is not atomic: a burst of concurrent requests may
// overshoot a limit by at most the number of requests in flight.
type Limiter struct {
	repo               RequestRepository
	rules              *Rules
	logger             *zap.Logger
	retention          time.Duration
	cleanupProbability float64
	subject            SubjectFunc
	now                func() time.Time
	roll               func() float64
}

type Option func(*Limiter)

// WithRetention sets how long records are kept before Cleanup removes them.
func WithRetention(d time.Duration) Option {
	return func(l *Limiter) { l.retention = d }
}

// WithCleanupProbability sets the chance that a logged request also runs Cleanup.
func WithCleanupProbability(p float64) Option {
	return func(l *Limiter) { l.cleanupProbability = p }
}

func WithSubject(f SubjectFunc) Option {
	return func(l *Limiter) { l.subject = f }
}

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func withRoll(roll func() float64) Option {
	return func(l *Limiter) { l.roll = roll }
}

func NewLimiter(repo RequestRepository, rules *Rules, logger *zap.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		repo:               repo,
		rules:              rules,
		logger:             logger,
		retention:          24 * time.Hour,
		cleanupProbability: 0.01,
		now:                func() time.Time { return time.Now().UTC() },
		roll:               rand.Float64,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check counts the caller's requests to endpoint in the trailing window.
func (l *Limiter) Check(ctx context.Context, endpoint string, caller Caller) (*Decision, error) {
	rule := l.rules.Lookup(endpoint)
	now := l.now()

	count, err := l.repo.CountBetween(ctx, endpoint, caller, now.Add(-rule.Window), now)
	if err != nil {
		return nil, err
	}

	remaining := rule.Limit - int(count) - 1
	if remaining < 0 {
		remaining = 0
	}
	return &Decision{
		Allowed:   count < int64(rule.Limit),
		Limit:     rule.Limit,
		Remaining: remaining,
		Reset:     now.Add(rule.Window),
		Window:    rule.Window,
	}, nil
}

// Middleware enforces the endpoint's rule before any later handler runs.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		endpoint := endpointOf(c)
		d, err := l.Check(c.Request.Context(), endpoint, l.callerOf(c))
		if err != nil {
			l.logger.Error("rate limit check failed", zap.String("endpoint", endpoint), zap.Error(err))
			response.ServerError(c, err)
			return
		}

		c.Header(HeaderLimit, strconv.Itoa(d.Limit))
		c.Header(HeaderRemaining, strconv.Itoa(d.Remaining))
		c.Header(HeaderReset, strconv.FormatInt(d.Reset.Unix(), 10))

		if !d.Allowed {
			wait := int(d.Window / time.Second)
			c.Header(HeaderRetryAfter, strconv.Itoa(wait))
			l.logger.Warn("rate limit exceeded",
				zap.String("endpoint", endpoint),
				zap.String("ip", c.ClientIP()),
				zap.Int("limit", d.Limit),
			)
			response.Throttled(c, response.CodeRateLimited, "Too many requests. Please try again later.", wait)
			return
		}
		c.Next()
	}
}

// Recorder appends one RequestRecord for every request after it completes,
// including requests rejected by Middleware.
func (l *Limiter) Recorder() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := l.now()
		c.Next()

		rec := &RequestRecord{
			Endpoint:       endpointOf(c),
			Method:         c.Request.Method,
			IPAddress:      c.ClientIP(),
			ResponseCode:   c.Writer.Status(),
			ResponseTimeMs: l.now().Sub(start).Milliseconds(),
			ErrorMessage:   c.GetString(response.ContextErrorKey),
			RequestTime:    start,
		}
		if l.subject != nil {
			if userType, userID, ok := l.subject(c); ok {
				rec.UserType = userType
				rec.UserID = &userID
			}
		}

		// the request context may already be cancelled once the handler chain unwinds
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), logTimeout)
		defer cancel()
		l.Log(ctx, rec)
		l.maybeCleanup(ctx)
	}
}

// Log appends rec; failures are logged and never surface to the caller.
func (l *Limiter) Log(ctx context.Context, rec *RequestRecord) {
	if err := l.repo.Create(ctx, rec); err != nil {
		l.logger.Warn("failed to record api request", zap.String("endpoint", rec.Endpoint), zap.Error(err))
	}
}

// Cleanup deletes records older than the retention period.
func (l *Limiter) Cleanup(ctx context.Context) (int64, error) {
	return l.repo.DeleteBefore(ctx, l.now().Add(-l.retention))
}

func (l *Limiter) maybeCleanup(ctx context.Context) {
	if l.roll() >= l.cleanupProbability {
		return
	}
	n, err := l.Cleanup(ctx)
	if err != nil {
		l.logger.Warn("api request cleanup failed", zap.Error(err))
		return
	}
	l.logger.Info("api request cleanup", zap.Int64("deleted", n))
}

func (l *Limiter) callerOf(c *gin.Context) Caller {
	caller := Caller{IP: c.ClientIP()}
	if l.subject != nil {
		if userType, userID, ok := l.subject(c); ok {
			caller.UserType = userType
			caller.UserID = &userID
		}
	}
	return caller
}

func endpointOf(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}
