package http

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestIsAllowedOrigin(t *testing.T) {
	tests := []struct {
		name           string
		origin         string
		allowedOrigins []string
		want           bool
	}{
		{"exact match", "http://localhost:3000", []string{"http://localhost:3000"}, true},
		{"wildcard match", "chrome-extension://abcdefg12345", []string{"chrome-extension://*"}, true},
		{"matches second entry", "http://localhost:3000", []string{"chrome-extension://*", "http://localhost:3000"}, true},
		{"no match", "http://evil.com", []string{"chrome-extension://*"}, false},
		{"empty origin", "", []string{"chrome-extension://*"}, false},
		{"empty origin against bare wildcard", "", []string{"*"}, false},
		{"empty allowed list", "http://localhost:3000", []string{}, false},
		{"partial wildcard match", "chrome-extension://abcdefg12345", []string{"chrome-*"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isAllowedOrigin(tt.origin, tt.allowedOrigins))
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		origin     string
		method     string
		wantStatus int
		wantCORS   bool
	}{
		{"allowed origin GET", "chrome-extension://abcdefg12345", "GET", http.StatusOK, true},
		{"allowed origin OPTIONS", "chrome-extension://abcdefg12345", "OPTIONS", http.StatusNoContent, true},
		{"disallowed origin", "http://evil.com", "GET", http.StatusOK, false},
		{"no origin header", "", "GET", http.StatusOK, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(CORSMiddleware([]string{"chrome-extension://*"}))
			router.GET("/test", func(c *gin.Context) {
				c.String(http.StatusOK, "OK")
			})

			req := httptest.NewRequest(tt.method, "/test", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCORS {
				assert.Equal(t, tt.origin, w.Header().Get("Access-Control-Allow-Origin"))
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
				assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))
				assert.NotEmpty(t, w.Header().Get("Access-Control-Max-Age"))
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(seen *string) *gin.Engine {
		router := gin.New()
		router.Use(RequestIDMiddleware())
		router.GET("/test", func(c *gin.Context) {
			*seen = c.GetString("request_id")
			c.String(http.StatusOK, "OK")
		})
		return router
	}

	t.Run("assigns an id when none is sent", func(t *testing.T) {
		var seen string
		router := newRouter(&seen)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

		id := w.Header().Get(RequestIDHeader)
		assert.Len(t, id, 36)
		assert.Equal(t, id, seen)
	})

	t.Run("propagates the caller's id", func(t *testing.T) {
		var seen string
		router := newRouter(&seen)

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, "trace-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "trace-123", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "trace-123", seen)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(perMinute int) *gin.Engine {
		router := gin.New()
		router.Use(RateLimitMiddleware(perMinute))
		router.GET("/test", func(c *gin.Context) {
			c.String(http.StatusOK, "OK")
		})
		return router
	}

	request := func(router *gin.Engine, ip string) int {
		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = ip + ":12345"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	t.Run("rejects requests over the per-IP burst", func(t *testing.T) {
		router := newRouter(2)

		assert.Equal(t, http.StatusOK, request(router, "10.0.0.1"))
		assert.Equal(t, http.StatusOK, request(router, "10.0.0.1"))
		assert.Equal(t, http.StatusTooManyRequests, request(router, "10.0.0.1"))
	})

	t.Run("tracks clients independently", func(t *testing.T) {
		router := newRouter(1)

		assert.Equal(t, http.StatusOK, request(router, "10.0.0.1"))
		assert.Equal(t, http.StatusTooManyRequests, request(router, "10.0.0.1"))
		assert.Equal(t, http.StatusOK, request(router, "10.0.0.2"))
	})

	t.Run("zero disables limiting", func(t *testing.T) {
		router := newRouter(0)

		for i := 0; i < 50; i++ {
			assert.Equal(t, http.StatusOK, request(router, "10.0.0.1"))
		}
	})
}

func TestIPLimiters_EvictsIdle(t *testing.T) {
	start := time.Now()
	limiters := newIPLimiters(rate.Every(time.Minute), 1)
	limiters.lastSweep = start

	for i := 0; i < 100; i++ {
		limiters.get(fmt.Sprintf("10.0.%d.%d", i/256, i%256), start)
	}
	assert.Equal(t, 100, limiters.size())

	t.Run("active clients keep their limiter", func(t *testing.T) {
		first := limiters.get("10.0.0.1", start)
		again := limiters.get("10.0.0.1", start.Add(limiterIdleTTL/2))
		assert.Same(t, first, again)
		assert.Equal(t, 100, limiters.size(), "no sweep before the idle period")
	})

	t.Run("idle clients are dropped on the next sweep", func(t *testing.T) {
		limiters.get("10.9.9.9", start.Add(limiterIdleTTL))

		assert.Equal(t, 2, limiters.size())
		limiters.mu.Lock()
		_, kept := limiters.limiters["10.0.0.1"]
		limiters.mu.Unlock()
		assert.True(t, kept)
	})

	t.Run("size stays bounded under a stream of new IPs", func(t *testing.T) {
		now := start.Add(limiterIdleTTL)
		for round := 0; round < 5; round++ {
			now = now.Add(limiterIdleTTL)
			for i := 0; i < 50; i++ {
				limiters.get(fmt.Sprintf("172.16.%d.%d", round, i), now)
			}
		}
		assert.LessOrEqual(t, limiters.size(), 51)
	})
}
