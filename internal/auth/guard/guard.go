// Package guard issues short-lived signed tokens and admits each of them at
// most once. Consumed tokens are remembered in memory until they expire; a
// background sweep forgets them afterwards.
package guard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	DefaultTTL           = 5 * time.Minute
	DefaultSweepInterval = time.Minute
)

type Config struct {
	Secret        string
	TTL           time.Duration // default DefaultTTL
	SweepInterval time.Duration // default DefaultSweepInterval
	Now           func() time.Time
}

type Option func(*Guard)

func WithLogger(l *zap.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.log = l
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

// Guard is safe for concurrent use.
type Guard struct {
	key      []byte
	ttl      time.Duration
	interval time.Duration
	clock    func() time.Time
	parser   *jwt.Parser
	log      *zap.Logger
	metrics  *Metrics

	mu   sync.Mutex
	used map[string]time.Time // token -> exp

	sweeping atomic.Bool

	lifeMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config, opts ...Option) (*Guard, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("guard: secret is required")
	}
	key, err := deriveKey(cfg.Secret)
	if err != nil {
		return nil, err
	}
	g := &Guard{
		key:      key,
		ttl:      cfg.TTL,
		interval: cfg.SweepInterval,
		clock:    cfg.Now,
		log:      zap.NewNop(),
		used:     make(map[string]time.Time, 256),
	}
	if g.ttl <= 0 {
		g.ttl = DefaultTTL
	}
	if g.interval <= 0 {
		g.interval = DefaultSweepInterval
	}
	if g.clock == nil {
		g.clock = time.Now
	}
	g.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

func (g *Guard) now() time.Time { return g.clock() }

// TTL is the lifetime given to issued tokens.
func (g *Guard) TTL() time.Duration { return g.ttl }

// Admit lets a token through exactly once. The order of checks matters:
// only genuine, unexpired tokens ever reach the used set.
func (g *Guard) Admit(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return g.rejected(reject(ReasonMissing, ErrMissingCredential))
	}

	verdict, exp, err := g.verify(token)
	if err != nil {
		g.log.Error("token verification failed", zap.Error(err))
		return g.rejected(reject(ReasonInternal, ErrInternal))
	}
	switch verdict {
	case Expired:
		return g.rejected(reject(ReasonExpired, ErrInvalidOrExpired))
	case Malformed:
		return g.rejected(reject(ReasonInvalid, ErrInvalidOrExpired))
	}

	if reason, ok := g.consume(token, exp); !ok {
		return g.rejected(reject(reason, ErrInvalidOrExpired))
	}
	g.metrics.admitted(g.Used())
	return nil
}

// consume inserts token into the used set unless it is already there or has
// expired by now. The expiry is re-read under the lock that Sweep evicts
// under, so a token evicted between verify and consume is never let in.
func (g *Guard) consume(token string, exp time.Time) (Reason, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, seen := g.used[token]; seen {
		return ReasonReplayed, false
	}
	if !g.now().Before(exp) {
		return ReasonExpired, false
	}
	g.used[token] = exp
	return "", true
}

func (g *Guard) rejected(err error) error {
	reason := ReasonOf(err)
	g.metrics.rejected(reason)
	if reason != ReasonInternal {
		g.log.Debug("token rejected", zap.String("reason", string(reason)))
	}
	return err
}

// Used reports how many consumed tokens are currently remembered.
func (g *Guard) Used() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.used)
}
