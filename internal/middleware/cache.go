package middleware

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-planner/internal/config"
)

// ResponseCache caches successful GET responses for resource reads in
// redis.  Entries are keyed by resource name and invalidated the moment a
// mutation on that resource commits, so a cached read is never staler than
// the last accepted write plus network skew.  With no redis client the
// cache degrades to a no-op.
type ResponseCache struct {
	cfg config.CacheConfig
	rdb *redis.Client
}

// NewResponseCache builds a ResponseCache; rdb may be nil.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client) *ResponseCache {
	return &ResponseCache{cfg: cfg, rdb: rdb}
}

func (rc *ResponseCache) enabled() bool { return rc.cfg.Enabled && rc.rdb != nil }

func (rc *ResponseCache) key(resource string) string {
	return rc.cfg.Prefix + ":resource:" + resource
}

// Invalidate drops the cached body for resource.  Called by the mutation
// path after every committed write.
func (rc *ResponseCache) Invalidate(resource string) {
	if !rc.enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rc.rdb.Del(ctx, rc.key(resource))
}

// bodyRecorder duplicates the response body so a miss can be stored after
// the handler ran.
type bodyRecorder struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (w *bodyRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	if w.buf.Len()+len(b) <= 1<<20 {
		w.buf.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

// Middleware serves resource GETs from redis when possible and records
// misses.  Only 200 responses are cached.
func (rc *ResponseCache) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rc.enabled() || c.Request().Method != http.MethodGet {
				return next(c)
			}
			name := c.Param("name")
			ctx := c.Request().Context()

			if body, err := rc.rdb.Get(ctx, rc.key(name)).Bytes(); err == nil {
				c.Response().Header().Set("X-Cache", "HIT")
				return c.JSONBlob(http.StatusOK, body)
			}

			rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK}
			c.Response().Writer = rec
			if err := next(c); err != nil {
				return err
			}
			if rec.status == http.StatusOK && rec.buf.Len() > 0 {
				rc.rdb.Set(ctx, rc.key(name), rec.buf.Bytes(), rc.cfg.TTL)
			}
			return nil
		}
	}
}
