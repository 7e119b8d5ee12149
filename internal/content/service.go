package content

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNotFound is returned for an unknown trail slug.
var ErrNotFound = errors.New("trail not found")

const (
	keyGear   = "gear"
	keyTrails = "trails"
	keyTrail  = "trail:"
	keyMiss   = "miss:"

	// missTTL is how long an unknown slug answers 404 without asking Notion.
	missTTL = time.Minute
	// minRefresh spaces list refreshes triggered by unknown slugs.
	minRefresh = 30 * time.Second
)

// GearSource fetches gear recommendations.
type GearSource interface {
	FetchGear(ctx context.Context) ([]GearCategory, error)
}

// TrailSource fetches trail pages.
type TrailSource interface {
	QueryTrails(ctx context.Context) ([]TrailSummary, error)
	PageBlocks(ctx context.Context, pageID string) ([]Block, error)
}

// Service serves cached gear and trail content.
type Service struct {
	gear   GearSource
	trails TrailSource
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger

	mu          sync.RWMutex
	slugs       map[string]TrailSummary
	lastRefresh time.Time
	now         func() time.Time
}

// NewService creates a content service. A nil cache disables caching.
func NewService(gear GearSource, trails TrailSource, cache Cache, ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		gear:   gear,
		trails: trails,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
		slugs:  map[string]TrailSummary{},
		now:    time.Now,
	}
}

// Gear returns gear grouped by category.
func (s *Service) Gear(ctx context.Context) ([]GearCategory, error) {
	var out []GearCategory
	if s.cached(ctx, keyGear, &out) {
		return out, nil
	}
	out, err := s.gear.FetchGear(ctx)
	if err != nil {
		return nil, err
	}
	s.store(ctx, keyGear, out)
	return out, nil
}

// Trails returns every trail summary.
func (s *Service) Trails(ctx context.Context) ([]TrailSummary, error) {
	var out []TrailSummary
	if s.cached(ctx, keyTrails, &out) {
		s.remember(out)
		return out, nil
	}
	return s.refreshTrails(ctx)
}

func (s *Service) refreshTrails(ctx context.Context) ([]TrailSummary, error) {
	out, err := s.trails.QueryTrails(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.lastRefresh = s.now()
	s.mu.Unlock()
	s.remember(out)
	s.store(ctx, keyTrails, out)
	return out, nil
}

// Trail returns one trail with its blocks.
func (s *Service) Trail(ctx context.Context, slug string) (*TrailDetail, error) {
	var detail TrailDetail
	if s.cached(ctx, keyTrail+slug, &detail) {
		return &detail, nil
	}

	summary, ok := s.lookup(slug)
	if !ok {
		if _, err := s.Trails(ctx); err != nil {
			return nil, err
		}
		summary, ok = s.lookup(slug)
	}
	if !ok {
		var miss bool
		if s.cached(ctx, keyMiss+slug, &miss) && miss {
			return nil, ErrNotFound
		}
		// The cached list may predate the page.
		if s.refreshDue() {
			if _, err := s.refreshTrails(ctx); err != nil {
				return nil, err
			}
			summary, ok = s.lookup(slug)
		}
	}
	if !ok {
		s.storeTTL(ctx, keyMiss+slug, true, missTTL)
		return nil, ErrNotFound
	}

	blocks, err := s.trails.PageBlocks(ctx, summary.ID)
	if err != nil {
		return nil, err
	}
	if blocks == nil {
		blocks = []Block{}
	}
	detail = TrailDetail{TrailSummary: summary, Blocks: blocks}
	s.store(ctx, keyTrail+slug, detail)
	return &detail, nil
}

// Invalidate drops cached content and the slug map.
func (s *Service) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	s.slugs = map[string]TrailSummary{}
	s.mu.Unlock()
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx)
}

func (s *Service) refreshDue() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now().Sub(s.lastRefresh) >= minRefresh
}

func (s *Service) remember(list []TrailSummary) {
	m := make(map[string]TrailSummary, len(list))
	for _, t := range list {
		m[t.Slug] = t
	}
	s.mu.Lock()
	s.slugs = m
	s.mu.Unlock()
}

func (s *Service) lookup(slug string) (TrailSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.slugs[slug]
	return t, ok
}

func (s *Service) cached(ctx context.Context, key string, dest any) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn("content cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return ok
}

func (s *Service) store(ctx context.Context, key string, value any) {
	s.storeTTL(ctx, key, value, s.ttl)
}

func (s *Service) storeTTL(ctx context.Context, key string, value any, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn("content cache write failed", zap.String("key", key), zap.Error(err))
	}
}
