package complaint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"denuncia/backend/internal/models"
)

// Cache keys. Paged listings share a prefix so one call drops all of them.
const (
	keyProtocolPrefix = "complaint:protocol:"
	keyStatusPrefix   = "complaints:status:"
	keyAll            = "complaints:all"
	keyPagedPrefix    = "complaints:paged:"
	keyStats          = "dashboard:stats"
	keyCategories     = "categories:all"
)

// Key classes label the cache hit/miss metrics.
const (
	classProtocol   = "protocol"
	classStatus     = "status_list"
	classAll        = "all"
	classPaged      = "paged"
	classStats      = "stats"
	classCategories = "categories"
)

func protocolKey(code string) string {
	return keyProtocolPrefix + code
}

func statusKey(s models.Status) string {
	return keyStatusPrefix + string(s)
}

type pagedKeyParams struct {
	Page     int    `json:"p"`
	PageSize int    `json:"n"`
	Status   string `json:"s,omitempty"`
	From     string `json:"f,omitempty"`
	To       string `json:"t,omitempty"`
}

// pagedKey hashes the normalised query so equal queries share an entry.
// Dates are reduced to the day boundary the query filters on, so the time of
// day does not split the cache.
func pagedKey(page, pageSize int, f models.ListFilter) string {
	p := pagedKeyParams{Page: page, PageSize: pageSize, From: dayKey(f.From), To: dayKey(f.To)}
	if f.Status != nil {
		p.Status = string(*f.Status)
	}
	raw, _ := json.Marshal(p)
	sum := sha256.Sum256(raw)
	return keyPagedPrefix + hex.EncodeToString(sum[:16])
}

func dayKey(t *time.Time) string {
	if t == nil {
		return ""
	}
	return startOfDay(*t).UTC().Format(time.RFC3339)
}

// remember reads key through the cache, decoding JSON into T. A corrupt entry
// is dropped and the value loaded straight from the store.
func remember[T any](ctx context.Context, r *Repository, class, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var out T
	hit := true
	raw, err := r.cache.Remember(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		hit = false
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if hit {
		r.metrics.RecordCacheHit(class)
	} else {
		r.metrics.RecordCacheMiss(class)
	}
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		r.logger.WarnContext(ctx, "dropping undecodable cache entry", "key", key, "error", err)
		_ = r.cache.Delete(ctx, key)
		return load(ctx)
	}
	return out, nil
}

// invalidate runs after commit. Cache errors are logged and swallowed: the
// store already holds the truth and entries expire on their own.
func (r *Repository) invalidate(ctx context.Context, keys []string, prefixes ...string) {
	if err := r.cache.Delete(ctx, keys...); err != nil {
		r.logger.WarnContext(ctx, "cache invalidation failed", "keys", keys, "error", err)
	}
	for _, p := range prefixes {
		if err := r.cache.DeletePrefix(ctx, p); err != nil {
			r.logger.WarnContext(ctx, "cache prefix invalidation failed", "prefix", p, "error", err)
		}
	}
}

// invalidateComplaint drops everything that can contain the complaint with
// the given protocol. Every status list goes: the status a concurrent writer
// replaced is not known here.
func (r *Repository) invalidateComplaint(ctx context.Context, code string) {
	keys := []string{keyAll, keyStats}
	if code != "" {
		keys = append(keys, protocolKey(code))
	}
	r.invalidate(ctx, keys, keyStatusPrefix, keyPagedPrefix)
}
