package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long bootstrapped cookies are reused.
const DefaultTTL = time.Hour

// Bootstrapper obtains fresh session cookies from the upstream.
type Bootstrapper interface {
	Bootstrap(ctx context.Context) ([]*http.Cookie, error)
}

// Config holds provider settings.
type Config struct {
	TTL time.Duration
}

// Provider returns session cookies, reusing them until they expire.
// Lookups go through an in-process copy, then the Redis store (if any),
// then a bootstrap. Concurrent bootstraps are collapsed into one.
type Provider struct {
	store        *Store
	bootstrapper Bootstrapper
	ttl          time.Duration
	logger       zerolog.Logger

	group singleflight.Group

	mu    sync.Mutex
	local *Entry
}

// NewProvider creates a provider. store may be nil to keep sessions in memory only.
func NewProvider(store *Store, bootstrapper Bootstrapper, cfg Config) *Provider {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Provider{
		store:        store,
		bootstrapper: bootstrapper,
		ttl:          cfg.TTL,
		logger:       log.With().Str("component", "session").Logger(),
	}
}

// Cookies implements pagination.CookieSource.
func (p *Provider) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	if e := p.localEntry(); e != nil {
		cacheHits.Inc()
		return e.HTTPCookies(), nil
	}

	if p.store != nil {
		e, err := p.store.Get(ctx)
		switch {
		case err == nil:
			cacheHits.Inc()
			p.setLocal(e)
			return e.HTTPCookies(), nil
		case !errors.Is(err, ErrSessionMiss):
			p.logger.Warn().Err(err).Msg("Session store unavailable - bootstrapping")
		}
	}

	cacheMisses.Inc()
	v, err, _ := p.group.Do("bootstrap", func() (any, error) {
		return p.bootstrap(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry).HTTPCookies(), nil
}

// Invalidate drops the cached session so the next lookup bootstraps again.
func (p *Provider) Invalidate(ctx context.Context) error {
	p.mu.Lock()
	p.local = nil
	p.mu.Unlock()

	if p.store == nil {
		return nil
	}
	return p.store.Delete(ctx)
}

func (p *Provider) bootstrap(ctx context.Context) (*Entry, error) {
	cookies, err := p.bootstrapper.Bootstrap(ctx)
	if err != nil {
		bootstrapsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("bootstrap session: %w", err)
	}
	bootstrapsTotal.WithLabelValues("success").Inc()

	entry := NewEntry(cookies, p.ttl)
	if len(entry.Cookies) == 0 {
		// Nothing to cache; requests go out without cookies.
		p.logger.Warn().Msg("Landing page set no cookies")
		return entry, nil
	}

	p.setLocal(entry)
	if p.store != nil {
		if err := p.store.Set(ctx, entry); err != nil {
			p.logger.Warn().Err(err).Msg("Failed to cache session")
		}
	}

	p.logger.Info().
		Int("cookies", len(entry.Cookies)).
		Dur("ttl", p.ttl).
		Msg("Session bootstrapped")
	return entry, nil
}

func (p *Provider) localEntry() *Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.local == nil || p.local.IsExpired() {
		p.local = nil
		return nil
	}
	return p.local
}

func (p *Provider) setLocal(e *Entry) {
	p.mu.Lock()
	p.local = e
	p.mu.Unlock()
}
