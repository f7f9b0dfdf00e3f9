// Package classify implements the email classification and routing pipeline.
package classify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bizops_server/core/domain"
	"bizops_server/core/port/out"
	"bizops_server/pkg/cache"
	"bizops_server/pkg/logger"
)

const snapshotCacheKey = "classify:snapshot"

// Snapshot is the immutable per-run configuration: active rules in
// evaluation order, the folder map, and the client registry. It is loaded
// once per invocation and passed into every stage; stages never mutate it.
type Snapshot struct {
	Rules          []*domain.ClassificationRule `json:"rules"`
	FolderMap      map[string]*domain.FolderMapping `json:"folder_map"` // keyed by email type
	ClientDomains  map[string]*domain.Client        `json:"client_domains"`
	CustomerMarker string                           `json:"customer_marker"`
	LoadedAt       time.Time                        `json:"loaded_at"`
}

// MappingFor returns the active mapping for an email type, or nil.
func (s *Snapshot) MappingFor(emailType string) *domain.FolderMapping {
	return s.FolderMap[emailType]
}

// KnownClientDomain reports whether a domain belongs to a registry client.
func (s *Snapshot) KnownClientDomain(d string) bool {
	_, ok := s.ClientDomains[strings.ToLower(d)]
	return ok
}

// SnapshotLoader builds snapshots from the database with a short Redis TTL
// cache in front. The database stays the source of truth; the cache only
// absorbs bursts of handler invocations.
type SnapshotLoader struct {
	rules          out.RuleRepository
	folders        out.FolderMapRepository
	clients        out.ClientRepository
	cache          *cache.RedisCache
	ttl            time.Duration
	customerMarker string
}

// NewSnapshotLoader creates a loader. cache may be nil.
func NewSnapshotLoader(
	rules out.RuleRepository,
	folders out.FolderMapRepository,
	clients out.ClientRepository,
	redisCache *cache.RedisCache,
	ttl time.Duration,
	customerMarker string,
) *SnapshotLoader {
	return &SnapshotLoader{
		rules:          rules,
		folders:        folders,
		clients:        clients,
		cache:          redisCache,
		ttl:            ttl,
		customerMarker: customerMarker,
	}
}

// Load returns the configuration snapshot for one run.
func (l *SnapshotLoader) Load(ctx context.Context) (*Snapshot, error) {
	if l.cache != nil {
		var cached Snapshot
		hit, err := l.cache.GetJSON(ctx, snapshotCacheKey, &cached)
		if err != nil {
			logger.WithError(err).Warn("snapshot cache read failed, falling back to database")
		} else if hit {
			return &cached, nil
		}
	}

	snap, err := l.loadFromDB(ctx)
	if err != nil {
		return nil, err
	}

	if l.cache != nil {
		if err := l.cache.SetJSON(ctx, snapshotCacheKey, snap, l.ttl); err != nil {
			logger.WithError(err).Warn("snapshot cache write failed")
		}
	}

	return snap, nil
}

// Invalidate drops the cached snapshot after rule or mapping writes.
func (l *SnapshotLoader) Invalidate(ctx context.Context) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Delete(ctx, snapshotCacheKey); err != nil {
		logger.WithError(err).Warn("snapshot cache invalidation failed")
	}
}

func (l *SnapshotLoader) loadFromDB(ctx context.Context) (*Snapshot, error) {
	rules, err := l.rules.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	mappings, err := l.folders.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load folder map: %w", err)
	}

	clients, err := l.clients.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load client registry: %w", err)
	}

	folderMap := make(map[string]*domain.FolderMapping, len(mappings))
	for _, m := range mappings {
		folderMap[m.EmailType] = m
	}

	clientDomains := make(map[string]*domain.Client, len(clients))
	for _, c := range clients {
		if c.Domain != "" {
			clientDomains[strings.ToLower(c.Domain)] = c
		}
	}

	return &Snapshot{
		Rules:          rules,
		FolderMap:      folderMap,
		ClientDomains:  clientDomains,
		CustomerMarker: l.customerMarker,
		LoadedAt:       time.Now().UTC(),
	}, nil
}
