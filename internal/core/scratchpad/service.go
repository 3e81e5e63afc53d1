package scratchpad

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"scrapegate/internal/logger"
	rds "scrapegate/internal/platform/redis"
)

var ErrNotFound = fmt.Errorf("scratchpad entry not found")

// Entries live for a week; scratch state that old is stale anyway.
const entryTTL = 7 * 24 * 3600

type Service struct {
	redis *rds.Service
	log   *logger.Logger
}

func NewService(redis *rds.Service) *Service {
	return &Service{redis: redis, log: logger.New("ScratchpadService")}
}

// Save writes an entry, generating a key when none was given. Re-saving an
// existing key updates content in place and keeps the original creation
// time.
func (s *Service) Save(ctx context.Context, apiKey string, req SaveRequest) (*Entry, error) {
	now := time.Now().UTC()
	entry := &Entry{
		Key:         req.Key,
		SessionID:   req.SessionID,
		Content:     req.Content,
		ContentType: req.ContentType,
		Source:      req.Source,
		Metadata:    req.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if entry.Key == "" {
		entry.Key = uuid.New().String()
	}
	if entry.ContentType == "" {
		entry.ContentType = "text"
	}
	if existing, err := s.Fetch(ctx, apiKey, entry.Key); err == nil {
		entry.CreatedAt = existing.CreatedAt
	}

	if err := s.redis.CacheSet(ctx, entryKey(apiKey, entry.Key), entry, entryTTL); err != nil {
		return nil, err
	}
	if err := s.redis.IndexAdd(ctx, indexKey(apiKey), entry.Key, float64(now.UnixNano())); err != nil {
		return nil, err
	}
	if entry.SessionID != "" {
		if err := s.redis.Client().RPush(ctx, historyKey(apiKey, entry.SessionID), entry.Key).Err(); err != nil {
			return nil, err
		}
		_ = s.redis.Client().Expire(ctx, historyKey(apiKey, entry.SessionID), entryTTL*time.Second).Err()
	}
	return entry, nil
}

// Fetch returns one entry by key.
func (s *Service) Fetch(ctx context.Context, apiKey, key string) (*Entry, error) {
	var e Entry
	if err := s.redis.CacheGet(ctx, entryKey(apiKey, key), &e); err != nil {
		return nil, ErrNotFound
	}
	return &e, nil
}

// ListKeys returns the caller's entry keys, most recently written first.
// Keys whose entries expired are dropped from the index lazily.
func (s *Service) ListKeys(ctx context.Context, apiKey string) ([]string, error) {
	keys, err := s.redis.IndexRange(ctx, indexKey(apiKey), 0)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, err := s.Fetch(ctx, apiKey, k); err != nil {
			_ = s.redis.IndexRemove(ctx, indexKey(apiKey), k)
			continue
		}
		out = append(out, k)
	}
	return out, nil
}

func (s *Service) entries(ctx context.Context, apiKey string) ([]*Entry, error) {
	keys, err := s.ListKeys(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	out := make([]*Entry, 0, len(keys))
	for _, k := range keys {
		if e, err := s.Fetch(ctx, apiKey, k); err == nil {
			out = append(out, e)
		}
	}
	return out, nil
}

// FilterBySource returns entries written by the given source, e.g. "planner"
// or "scraper".
func (s *Service) FilterBySource(ctx context.Context, apiKey, source string) ([]*Entry, error) {
	all, err := s.entries(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	out := make([]*Entry, 0, len(all))
	for _, e := range all {
		if e.Source == source {
			out = append(out, e)
		}
	}
	return out, nil
}

// SessionEntries returns the session's entries in write order.
func (s *Service) SessionEntries(ctx context.Context, apiKey, sessionID string) ([]*Entry, error) {
	keys, err := s.History(ctx, apiKey, sessionID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(keys))
	out := make([]*Entry, 0, len(keys))
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		if e, err := s.Fetch(ctx, apiKey, k); err == nil {
			out = append(out, e)
		}
	}
	return out, nil
}

// History returns the ordered list of keys written during a session,
// including repeated writes to the same key.
func (s *Service) History(ctx context.Context, apiKey, sessionID string) ([]string, error) {
	return s.redis.Client().LRange(ctx, historyKey(apiKey, sessionID), 0, -1).Result()
}

// Delete removes one entry.
func (s *Service) Delete(ctx context.Context, apiKey, key string) error {
	if _, err := s.Fetch(ctx, apiKey, key); err != nil {
		return err
	}
	if err := s.redis.CacheDel(ctx, entryKey(apiKey, key)); err != nil {
		return err
	}
	return s.redis.IndexRemove(ctx, indexKey(apiKey), key)
}

// ClearSession deletes every entry the session wrote plus its history.
func (s *Service) ClearSession(ctx context.Context, apiKey, sessionID string) (int, error) {
	keys, err := s.History(ctx, apiKey, sessionID)
	if err != nil {
		return 0, err
	}
	deleted := 0
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		if err := s.Delete(ctx, apiKey, k); err == nil {
			deleted++
		}
	}
	if err := s.redis.Client().Del(ctx, historyKey(apiKey, sessionID)).Err(); err != nil {
		return deleted, err
	}
	return deleted, nil
}

// Search ranks the caller's entries against the query.
func (s *Service) Search(ctx context.Context, apiKey, query string, limit int) ([]SearchHit, error) {
	all, err := s.entries(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	return RankTopK(query, all, limit), nil
}

func entryKey(apiKey, key string) string { return "scratch:" + apiKey + ":" + key }
func indexKey(apiKey string) string      { return "scratch:index:" + apiKey }
func historyKey(apiKey, sessionID string) string {
	return "scratch:history:" + apiKey + ":" + sessionID
}
