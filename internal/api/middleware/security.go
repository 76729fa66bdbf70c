// Package middleware provides security middleware for the admin API.
package middleware

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/godocscan/internal/config"
	"github.com/jonesrussell/godocscan/internal/logger"
)

const (
	// DefaultRateLimitWindow is the default window for rate limiting.
	DefaultRateLimitWindow = 5 * time.Second
	// DefaultRateLimit is the default number of requests allowed per window.
	DefaultRateLimit = 20
)

// TimeProvider is an interface for getting the current time.
type TimeProvider interface {
	Now() time.Time
}

type realTimeProvider struct{}

func (r realTimeProvider) Now() time.Time {
	return time.Now()
}

// rateLimitInfo holds request counts for a single client.
type rateLimitInfo struct {
	count      int
	lastAccess time.Time
}

// SecurityMiddleware enforces API key auth and per-client rate limits
// on the admin API.
type SecurityMiddleware struct {
	config          *config.ServerConfig
	logger          logger.Interface
	rateLimiter     map[string]rateLimitInfo
	mu              sync.Mutex
	timeProvider    TimeProvider
	rateLimitWindow time.Duration
	maxRequests     int
}

// NewSecurityMiddleware creates a new security middleware instance.
func NewSecurityMiddleware(cfg *config.ServerConfig, log logger.Interface) *SecurityMiddleware {
	return &SecurityMiddleware{
		config:          cfg,
		logger:          log,
		rateLimiter:     make(map[string]rateLimitInfo),
		timeProvider:    realTimeProvider{},
		rateLimitWindow: DefaultRateLimitWindow,
		maxRequests:     DefaultRateLimit,
	}
}

// SetTimeProvider sets a custom time provider for testing.
func (m *SecurityMiddleware) SetTimeProvider(provider TimeProvider) {
	m.timeProvider = provider
}

// SetRateLimitWindow sets the rate limit window duration.
func (m *SecurityMiddleware) SetRateLimitWindow(window time.Duration) {
	m.rateLimitWindow = window
}

// SetMaxRequests sets the number of requests allowed per window.
func (m *SecurityMiddleware) SetMaxRequests(limit int) {
	m.maxRequests = limit
}

func (m *SecurityMiddleware) checkRateLimit(clientIP string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.timeProvider.Now()
	info, exists := m.rateLimiter[clientIP]

	if !exists || now.Sub(info.lastAccess) > m.rateLimitWindow {
		m.rateLimiter[clientIP] = rateLimitInfo{count: 1, lastAccess: now}
		return true
	}

	if info.count >= m.maxRequests {
		return false
	}

	info.count++
	info.lastAccess = now
	m.rateLimiter[clientIP] = info
	return true
}

func (m *SecurityMiddleware) addSecurityHeaders(c *gin.Context) {
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "DENY")
	c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
}

// handleAPIKey checks the X-API-Key header. Auth is disabled when no
// key is configured.
func (m *SecurityMiddleware) handleAPIKey(c *gin.Context) error {
	if m.config.APIKey == "" {
		return nil
	}

	apiKey := c.GetHeader("X-API-Key")
	if apiKey == "" {
		return errors.New("missing API key")
	}
	if apiKey != m.config.APIKey {
		return errors.New("invalid API key")
	}
	return nil
}

// Middleware returns the security middleware function.
func (m *SecurityMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.addSecurityHeaders(c)

		if err := m.handleAPIKey(c); err != nil {
			m.logger.Warn("Rejected admin API request",
				"client_ip", c.ClientIP(),
				"path", c.Request.URL.Path,
				"error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		if !m.checkRateLimit(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}

		c.Next()
	}
}
