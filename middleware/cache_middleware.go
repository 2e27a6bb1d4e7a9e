package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Bekzhanizb/LifeQuestBackend/cache"
	"github.com/Bekzhanizb/LifeQuestBackend/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const cachePrefix = "cache:"

// Cache serves repeated GET requests from Redis. Responses are shared
// between users, so it only wraps endpoints whose body does not depend on
// the caller.
func Cache(store *cache.Store, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || !store.Enabled() {
			c.Next()
			return
		}

		cacheKey := CacheKey(c.Request.URL.Path, c.Request.URL.RawQuery)

		var cached CachedResponse
		err := store.Get(c.Request.Context(), cacheKey, &cached)
		if err == nil {
			utils.Logger.Debug("cache_hit", zap.String("key", cacheKey))
			for key, values := range cached.Headers {
				for _, value := range values {
					c.Header(key, value)
				}
			}
			c.Header("X-Cache", "HIT")
			c.Data(cached.Status, cached.ContentType, cached.Body)
			c.Abort()
			return
		}
		if !errors.Is(err, cache.ErrMiss) {
			utils.Logger.Warn("cache_get_failed", zap.String("key", cacheKey), zap.Error(err))
		}

		c.Header("X-Cache", "MISS")
		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		if c.Writer.Status() != http.StatusOK {
			return
		}
		resp := CachedResponse{
			Status:      c.Writer.Status(),
			ContentType: c.Writer.Header().Get("Content-Type"),
			Body:        blw.body.Bytes(),
		}
		if err := store.Set(c.Request.Context(), cacheKey, resp, ttl); err != nil {
			utils.Logger.Warn("cache_set_failed", zap.String("key", cacheKey), zap.Error(err))
			return
		}
		utils.Logger.Debug("cache_set", zap.String("key", cacheKey), zap.Duration("ttl", ttl))
	}
}

func CacheKey(path, rawQuery string) string {
	if rawQuery == "" {
		return cachePrefix + path
	}
	return cachePrefix + path + "?" + rawQuery
}

// InvalidatePaths drops every cached response under the given paths,
// including their query variants.
func InvalidatePaths(ctx context.Context, store *cache.Store, paths ...string) {
	for _, p := range paths {
		if err := store.DeletePattern(ctx, cachePrefix+p+"*"); err != nil {
			utils.Logger.Warn("cache_invalidate_failed", zap.String("path", p), zap.Error(err))
		}
	}
}

type CachedResponse struct {
	Status      int         `json:"status"`
	ContentType string      `json:"content_type"`
	Body        []byte      `json:"body"`
	Headers     http.Header `json:"headers,omitempty"`
}

type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyLogWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
