package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/erp/invoicing/internal/infrastructure/auth"
	"github.com/erp/invoicing/internal/infrastructure/config"
	"github.com/erp/invoicing/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ============ Request ID Tests ============

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "client-id-1")
	assert.Equal(t, "client-id-1", serve(r, req).Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 500))
	assert.Len(t, serve(r, req).Header().Get(RequestIDHeader), 36, "oversized ids are replaced")
}

// ============ CORS Tests ============

func TestCORS(t *testing.T) {
	cfg := CORSConfigFrom(config.HTTPConfig{CORSAllowOrigins: []string{"https://app.example.nl"}})
	r := gin.New()
	r.Use(CORSWithConfig(cfg))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://app.example.nl")
	w := serve(r, req)
	assert.Equal(t, "https://app.example.nl", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.example.nl")
	w = serve(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

// ============ Body Limit Tests ============

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), BodyLimit(16))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"a":1}`)))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(strings.Repeat("a", 64))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	errInfo := decodeError(t, w)
	assert.Equal(t, dto.ErrCodeRequestTooLarge, errInfo.Code)
	assert.NotEmpty(t, errInfo.RequestID)
}

// ============ JWT Tests ============

type stubValidator struct {
	claims *auth.Claims
	err    error
}

func (s stubValidator) ValidateAccessToken(string) (*auth.Claims, error) {
	return s.claims, s.err
}

func TestJWTAuthMiddleware(t *testing.T) {
	tenantID, userID := uuid.NewString(), uuid.NewString()
	claims := &auth.Claims{TenantID: tenantID, UserID: userID}

	newRouter := func(v TokenValidator) *gin.Engine {
		r := gin.New()
		r.Use(JWTAuthMiddleware(v))
		r.GET("/api/v1/health", func(c *gin.Context) { c.Status(http.StatusOK) })
		r.GET("/api/v1/x", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"tenant": GetJWTTenantID(c), "user": GetJWTUserID(c)})
		})
		return r
	}

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/x", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+"token")
		w := serve(newRouter(stubValidator{claims: claims}), req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), tenantID)
		assert.Contains(t, w.Body.String(), userID)
	})

	t.Run("skip path", func(t *testing.T) {
		w := serve(newRouter(stubValidator{err: auth.ErrInvalidToken}), httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	tests := []struct {
		name   string
		header string
		err    error
		code   string
	}{
		{"missing header", "", nil, dto.ErrCodeUnauthorized},
		{"wrong scheme", "Basic abc", nil, dto.ErrCodeUnauthorized},
		{"expired", BearerPrefix + "t", auth.ErrExpiredToken, dto.ErrCodeTokenExpired},
		{"invalid", BearerPrefix + "t", auth.ErrInvalidToken, dto.ErrCodeTokenInvalid},
		{"missing tenant claim", BearerPrefix + "t", auth.ErrMissingTenantID, dto.ErrCodeTokenInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/x", nil)
			if tt.header != "" {
				req.Header.Set(AuthHeaderKey, tt.header)
			}
			w := serve(newRouter(stubValidator{err: tt.err}), req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

// ============ Tenant Tests ============

func TestTenantMiddleware(t *testing.T) {
	jwtTenant, headerTenant := uuid.NewString(), uuid.NewString()

	newRouter := func(cfg TenantMiddlewareConfig, fromJWT string) *gin.Engine {
		r := gin.New()
		r.Use(func(c *gin.Context) {
			if fromJWT != "" {
				c.Set(JWTTenantIDKey, fromJWT)
			}
			c.Next()
		})
		r.Use(TenantMiddlewareWithConfig(cfg))
		r.GET("/x", func(c *gin.Context) {
			id, err := GetTenantUUID(c)
			require.NoError(t, err)
			c.String(http.StatusOK, id.String())
		})
		return r
	}

	t.Run("jwt wins over header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(TenantHeaderKey, headerTenant)
		w := serve(newRouter(DefaultTenantConfig(), jwtTenant), req)
		assert.Equal(t, jwtTenant, w.Body.String())
	})

	t.Run("header fallback", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(TenantHeaderKey, headerTenant)
		w := serve(newRouter(DefaultTenantConfig(), ""), req)
		assert.Equal(t, headerTenant, w.Body.String())
	})

	t.Run("header disabled", func(t *testing.T) {
		cfg := DefaultTenantConfig()
		cfg.HeaderEnabled = false
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(TenantHeaderKey, headerTenant)
		w := serve(newRouter(cfg, ""), req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed tenant", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(TenantHeaderKey, "acme")
		w := serve(newRouter(DefaultTenantConfig(), ""), req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid tenant ID format", decodeError(t, w).Message)
	})
}

// ============ Rate Limit Tests ============

func TestRateLimiter_PerKeyBudget(t *testing.T) {
	now := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2)
	rl.now = func() time.Time { return now }

	ok, _ := rl.Reserve("a")
	assert.True(t, ok)
	ok, _ = rl.Reserve("a")
	assert.True(t, ok)
	ok, wait := rl.Reserve("a")
	assert.False(t, ok)
	assert.Equal(t, 30*time.Second, wait)

	ok, _ = rl.Reserve("b")
	assert.True(t, ok, "tenants have separate budgets")

	now = now.Add(30 * time.Second)
	ok, _ = rl.Reserve("a")
	assert.True(t, ok, "a token refills after a full interval")

	now = now.Add(time.Hour)
	rl.Reserve("c")
	assert.Equal(t, 1, rl.Len(), "idle keys are evicted")
}

func TestRateLimitByTenant(t *testing.T) {
	tenantID := uuid.NewString()
	rl := NewRateLimiter(1)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(TenantIDKey, tenantID)
		c.Next()
	})
	r.POST("/send", RateLimitByTenant(rl), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodPost, "/send", nil)).Code)

	w := serve(r, httptest.NewRequest(http.MethodPost, "/send", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, dto.ErrCodeRateLimited, decodeError(t, w).Code)
}

// ============ Validation Tests ============

type statusBody struct {
	Status string `json:"status" binding:"required,invoice_status"`
	Level  int    `json:"reminder_level" binding:"required,reminder_level"`
}

func TestRegisterValidations(t *testing.T) {
	v := validator.New()
	require.NoError(t, RegisterValidations(v))

	assert.NoError(t, v.Struct(statusBody{Status: "overdue_reminder_2", Level: 3}))

	err := v.Struct(statusBody{Status: "archived", Level: 4})
	require.Error(t, err)
	resp := FormatValidationErrors(err, "req-1")
	require.Len(t, resp.Error.Details, 2)
	assert.Equal(t, "status", resp.Error.Details[0].Field)
	assert.Contains(t, resp.Error.Details[0].Message, "overdue_reminder_1")
	assert.Equal(t, "reminder_level", resp.Error.Details[1].Field)
	assert.Equal(t, "Must be 1, 2 or 3", resp.Error.Details[1].Message)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
}

func TestSetupValidator_GinBinding(t *testing.T) {
	require.NoError(t, SetupValidator())

	r := gin.New()
	r.POST("/x", func(c *gin.Context) {
		var body statusBody
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	w := serve(r, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"status":"paid","reminder_level":1}`)))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"status":"gone","reminder_level":1}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "status", decodeError(t, w).Details[0].Field)
}

// ============ Telemetry Middleware Tests ============

func TestHTTPMetrics(t *testing.T) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))

	mw, err := HTTPMetrics(provider.Meter("test"))
	require.NoError(t, err)

	r := gin.New()
	r.Use(mw)
	r.GET("/invoices/:id/status", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	serve(r, httptest.NewRequest(http.MethodGet, "/invoices/"+uuid.NewString()+"/status", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/invoices/"+uuid.NewString()+"/status", nil))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "http_server_request_total" {
				continue
			}
			sum := m.Data.(metricdata.Sum[int64])
			require.Len(t, sum.DataPoints, 1, "route pattern keeps cardinality at one series")
			route, _ := sum.DataPoints[0].Attributes.Value("http.route")
			assert.Equal(t, "/invoices/:id/status", route.AsString())
			total = sum.DataPoints[0].Value
		}
	}
	assert.EqualValues(t, 2, total)
}

func TestTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	r := gin.New()
	r.Use(RequestID(), Tracing(TracingConfig{ServiceName: "invoicing", Enabled: true, TracerProvider: tp}))
	r.Use(func(c *gin.Context) {
		c.Set(TenantIDKey, "tenant-1")
		c.Next()
	}, TracingAttributeInjector())
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "Error", spans[0].Status().Code.String())

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "tenant-1", attrs["tenant_id"])
	assert.NotEmpty(t, attrs["request_id"])
}

func TestTracing_Disabled(t *testing.T) {
	r := gin.New()
	r.Use(Tracing(TracingConfig{}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
}
