// Package cache keeps recently read profile mirrors in memory so that
// projecting the signed-in user does not hit a remote store on every request.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"presupuestos/internal/auth"
	"presupuestos/internal/core"
	applog "presupuestos/internal/log"
)

const (
	DefaultProfileEntries = 1024
	DefaultProfileTTL     = 30 * time.Second
)

// Profiles is a read-through cache in front of an auth.ProfileStore.
// Writes go straight to the store and invalidate the cached entry, since
// the store merges fields and the result is only known after a read.
//
// gen moves on both sides of every write. A read only fills the cache when
// gen did not move while it was in flight, so a read racing a write cannot
// put the pre-write profile back.
type Profiles struct {
	next    auth.ProfileStore
	entries *LRU[core.Identity]
	logger  *slog.Logger

	mu  sync.Mutex
	gen uint64

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

var _ auth.ProfileStore = (*Profiles)(nil)

func NewProfiles(next auth.ProfileStore, maxEntries int, ttl time.Duration, logger *slog.Logger) *Profiles {
	if logger == nil {
		logger = slog.Default()
	}
	return &Profiles{
		next:    next,
		entries: NewLRU[core.Identity](maxEntries, ttl),
		logger:  logger,
	}
}

func (p *Profiles) Upsert(ctx context.Context, id core.Identity) error {
	p.invalidate(id.UID)
	err := p.next.Upsert(ctx, id)
	p.invalidate(id.UID)
	return err
}

func (p *Profiles) invalidate(uid string) {
	p.mu.Lock()
	p.gen++
	p.entries.Delete(uid)
	p.mu.Unlock()
}

func (p *Profiles) generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}

// Get serves from memory when possible. Missing profiles are not cached.
func (p *Profiles) Get(ctx context.Context, uid string) (*core.Identity, error) {
	if id, ok := p.entries.Get(uid); ok {
		return &id, nil
	}
	gen := p.generation()
	profile, err := p.next.Get(ctx, uid)
	if err != nil || profile == nil {
		return profile, err
	}
	p.mu.Lock()
	if p.gen == gen {
		p.entries.Set(uid, *profile)
	}
	p.mu.Unlock()
	return profile, nil
}

// StartJanitor drops expired entries every interval until Stop.
func (p *Profiles) StartJanitor(interval time.Duration) {
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := p.entries.CleanExpired(); n > 0 {
					p.logger.Debug("Expired profiles evicted",
						applog.FieldComponent, applog.ComponentProfiles,
						"count", n)
				}
			case <-p.stop:
				return
			}
		}
	}()
}

// Stop ends the janitor, if running.
func (p *Profiles) Stop() {
	p.stopOnce.Do(func() {
		if p.stop != nil {
			close(p.stop)
			<-p.done
		}
	})
}
