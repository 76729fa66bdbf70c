package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/jonesrussell/godocscan/internal/api/middleware"
	"github.com/jonesrussell/godocscan/internal/config"
	loggerMock "github.com/jonesrussell/godocscan/testutils/mocks/logger"
)

// mockTimeProvider is a mock implementation of TimeProvider
type mockTimeProvider struct {
	currentTime time.Time
}

func (m *mockTimeProvider) Now() time.Time {
	return m.currentTime
}

func (m *mockTimeProvider) Advance(d time.Duration) {
	m.currentTime = m.currentTime.Add(d)
}

// setupTestRouter creates a new test router with security middleware
func setupTestRouter(
	t *testing.T,
	cfg *config.ServerConfig,
) (*gin.Engine, *middleware.SecurityMiddleware, *mockTimeProvider) {
	ctrl := gomock.NewController(t)
	t.Cleanup(func() { ctrl.Finish() })

	mockLog := loggerMock.NewMockInterface(ctrl)
	mockLog.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()
	mockLog.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()

	security := middleware.NewSecurityMiddleware(cfg, mockLog)
	mockTime := &mockTimeProvider{currentTime: time.Now()}
	security.SetTimeProvider(mockTime)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(security.Middleware())
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	return router, security, mockTime
}

func get(router *gin.Engine, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSecurityMiddleware_NoKeyConfigured(t *testing.T) {
	router, _, _ := setupTestRouter(t, &config.ServerConfig{Address: ":0"})

	w := get(router, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSecurityMiddleware_APIKey(t *testing.T) {
	router, _, _ := setupTestRouter(t, &config.ServerConfig{Address: ":0", APIKey: "secret"})

	tests := []struct {
		name string
		key  string
		want int
	}{
		{"missing key", "", http.StatusUnauthorized},
		{"wrong key", "nope", http.StatusUnauthorized},
		{"valid key", "secret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(router, tt.key)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestSecurityMiddleware_RateLimit(t *testing.T) {
	router, security, mockTime := setupTestRouter(t, &config.ServerConfig{Address: ":0"})
	security.SetMaxRequests(2)
	security.SetRateLimitWindow(time.Second)

	assert.Equal(t, http.StatusOK, get(router, "").Code)
	assert.Equal(t, http.StatusOK, get(router, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(router, "").Code)

	// A new window resets the counter.
	mockTime.Advance(2 * time.Second)
	assert.Equal(t, http.StatusOK, get(router, "").Code)
}

func TestSecurityMiddleware_SecurityHeaders(t *testing.T) {
	router, _, _ := setupTestRouter(t, &config.ServerConfig{Address: ":0"})

	w := get(router, "")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
