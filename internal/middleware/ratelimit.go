package middleware

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	limiterlib "github.com/ulule/limiter/v3"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/manav-trails/backend/pkg/response"
)

// RateLimit limits requests per route and client IP. formatted uses the
// "<limit>-<period>" form, e.g. "300-M". Counters live in Redis under prefix.
// Store errors let the request through.
func RateLimit(rdb *redis.Client, formatted, prefix string, logger *zap.Logger) (gin.HandlerFunc, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rate, err := limiterlib.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("rate %q: %w", formatted, err)
	}
	store, err := sredis.NewStoreWithOptions(rdb, limiterlib.StoreOptions{
		Prefix:   prefix,
		MaxRetry: 3,
	})
	if err != nil {
		return nil, fmt.Errorf("limiter store: %w", err)
	}
	instance := limiterlib.New(store, rate)

	return func(c *gin.Context) {
		key := routeKey(c.FullPath()) + ":" + c.ClientIP()
		lctx, err := instance.Get(c.Request.Context(), key)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))
		if lctx.Reached {
			retry := time.Until(time.Unix(lctx.Reset, 0))
			if retry < time.Second {
				retry = time.Second
			}
			c.Header("Retry-After", strconv.Itoa(int(retry.Seconds())))
			response.TooManyRequests(c, "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}, nil
}

func routeKey(route string) string {
	route = strings.ReplaceAll(route, "/", "-")
	return strings.ReplaceAll(route, ":", "_")
}
