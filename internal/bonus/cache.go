package bonus

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	cacheVersionKey = "compensation:report:version"
	// sharedBuildTimeout bounds a build that outlives the caller that started it.
	sharedBuildTimeout = 2 * time.Minute
)

// ReportLoader builds a report page. cacheable is false when the data moved
// while the page was being read, in which case the page is returned but not
// stored.
type ReportLoader func(ctx context.Context) (report *ReportResponse, cacheable bool, err error)

// ReportCache stores built report pages in Redis. Keys carry a global
// version advanced by Bump and a watermark of the invoices behind the page,
// so a write to any of those invoices moves readers to a new key.
type ReportCache struct {
	client  *redis.Client
	ttl     time.Duration
	group   singleflight.Group
	metrics *Metrics
	logger  *slog.Logger
}

// NewReportCache returns a cache; a nil client or non-positive ttl disables
// it.
func NewReportCache(client *redis.Client, ttl time.Duration, metrics *Metrics, logger *slog.Logger) *ReportCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportCache{client: client, ttl: ttl, metrics: metrics, logger: logger}
}

// Enabled reports whether pages are stored at all.
func (c *ReportCache) Enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// Version returns the current cache version, initialising when missing.
func (c *ReportCache) Version(ctx context.Context) (int64, error) {
	if !c.Enabled() {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, cacheVersionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes the key of a report page for the given invoice
// watermark.
func (c *ReportCache) BuildKey(ctx context.Context, filter ReportFilter, skip, limit int, watermark string) (string, error) {
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("compensation:report:%s:%d", reportFingerprint(filter, skip, limit, watermark), ver), nil
}

// Fetch returns the cached page for key or builds it with loader. Concurrent
// callers of the same key share a single build. Redis failures degrade to a
// plain build.
func (c *ReportCache) Fetch(ctx context.Context, key string, loader ReportLoader) (*ReportResponse, error) {
	if loader == nil {
		return nil, errors.New("bonus: cache loader required")
	}
	if c == nil {
		report, _, err := loader(ctx)
		return report, err
	}
	if c.Enabled() {
		if cached, ok := c.lookup(ctx, key); ok {
			return cached, nil
		}
	}

	resultCh := c.group.DoChan(key, func() (interface{}, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedBuildTimeout)
		defer cancel()
		report, cacheable, err := loader(buildCtx)
		if err != nil {
			return nil, err
		}
		if cacheable && c.Enabled() {
			c.store(buildCtx, key, report)
		}
		return report, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultCh:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ReportResponse), nil
	}
}

func (c *ReportCache) lookup(ctx context.Context, key string) (*ReportResponse, bool) {
	payload, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached ReportResponse
		if err := json.Unmarshal(payload, &cached); err == nil {
			c.metrics.RecordCacheLookup("hit")
			return &cached, true
		}
		c.metrics.RecordCacheLookup("miss")
	case errors.Is(err, redis.Nil):
		c.metrics.RecordCacheLookup("miss")
	default:
		c.metrics.RecordCacheLookup("error")
		c.logger.Warn("report cache read", slog.String("key", key), slog.Any("error", err))
	}
	return nil, false
}

func (c *ReportCache) store(ctx context.Context, key string, report *ReportResponse) {
	raw, err := json.Marshal(report)
	if err != nil {
		c.logger.Warn("report cache encode", slog.String("key", key), slog.Any("error", err))
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.metrics.RecordCacheLookup("error")
		c.logger.Warn("report cache write", slog.String("key", key), slog.Any("error", err))
	}
}

// Bump invalidates every cached page.
func (c *ReportCache) Bump(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

func reportFingerprint(filter ReportFilter, skip, limit int, watermark string) string {
	parts := []string{
		filter.StartDate.Format(time.DateOnly),
		filter.EndDate.Format(time.DateOnly),
		optionalString(filter.CaseNumber),
		optionalInt(filter.VendorID),
		optionalInt(filter.ClientID),
		optionalString(filter.VendorTaxID),
		strconv.Itoa(skip),
		strconv.Itoa(limit),
		watermark,
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func optionalString(s *string) string {
	if s == nil {
		return "-"
	}
	return strings.ToLower(strings.TrimSpace(*s))
}

func optionalInt(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10)
}
