package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"kitchenprint/internal/config"
	"kitchenprint/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authConfig() config.APIConfig {
	cfg := openConfig()
	cfg.Auth = config.APIAuthConfig{
		Enabled:      true,
		HeaderAPIKey: "x-api-key",
		HeaderExtra:  "x-api-extra",
		APIKeys: []config.APIClientKey{
			{Key: "pos-key", Extra: "pos-extra", Name: "pos", Permissions: []string{permWriteOrders}, Tenants: []int64{1}},
			{Key: "ops-key", Extra: "ops-extra", Name: "ops", Permissions: []string{permReadJobs, permReadDevices}},
			{Key: "root-key", Extra: "root-extra", Name: "root"},
		},
	}
	return cfg
}

func keyHeaders(key, extra string) map[string]string {
	return map[string]string{"x-api-key": key, "x-api-extra": extra}
}

func TestHTTPAuth(t *testing.T) {
	ts := newTestServer(t, authConfig())

	cases := []struct {
		name    string
		method  string
		path    string
		body    any
		headers map[string]string
		want    int
	}{
		{"missing headers", http.MethodGet, "/api/v1/tenants/1/jobs", nil, nil, http.StatusUnauthorized},
		{"invalid key", http.MethodGet, "/api/v1/tenants/1/jobs", nil, keyHeaders("nope", "x"), http.StatusUnauthorized},
		{"invalid extra", http.MethodGet, "/api/v1/tenants/1/jobs", nil, keyHeaders("ops-key", "bad"), http.StatusUnauthorized},
		{"permission denied", http.MethodPost, "/api/v1/tenants/1/jobs/1/reprint", nil, keyHeaders("ops-key", "ops-extra"), http.StatusForbidden},
		{"read allowed", http.MethodGet, "/api/v1/tenants/1/jobs", nil, keyHeaders("ops-key", "ops-extra"), http.StatusOK},
		{"empty permissions allow all", http.MethodGet, "/api/v1/tenants/9/devices", nil, keyHeaders("root-key", "root-extra"), http.StatusOK},
		{"pos lacks read", http.MethodGet, "/api/v1/tenants/1/jobs", nil, keyHeaders("pos-key", "pos-extra"), http.StatusForbidden},
		{"pos tenant allowed", http.MethodPost, "/api/v1/orders", sampleOrder(1), keyHeaders("pos-key", "pos-extra"), http.StatusOK},
		{"pos tenant denied", http.MethodPost, "/api/v1/orders", models.Order{TenantID: 2, OrderID: 1},
			keyHeaders("pos-key", "pos-extra"), http.StatusForbidden},
		{"health is open", http.MethodGet, "/healthz", nil, nil, http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := ts.do(t, tc.method, tc.path, tc.body, tc.headers)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestHTTPAuth_TenantRouteAllowlist(t *testing.T) {
	cfg := authConfig()
	cfg.Auth.APIKeys = append(cfg.Auth.APIKeys,
		config.APIClientKey{Key: "t1-key", Extra: "t1-extra", Tenants: []int64{1}})
	ts := newTestServer(t, cfg)

	resp := ts.do(t, http.MethodGet, "/api/v1/tenants/1/jobs", nil, keyHeaders("t1-key", "t1-extra"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/v1/tenants/2/jobs", nil, keyHeaders("t1-key", "t1-extra"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHTTPAuth_RateLimit(t *testing.T) {
	cfg := authConfig()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 0.001, Burst: 2}
	ts := newTestServer(t, cfg)

	h := keyHeaders("ops-key", "ops-extra")
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/tenants/1/jobs", nil, h).StatusCode)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/tenants/1/jobs", nil, h).StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, ts.do(t, http.MethodGet, "/api/v1/tenants/1/jobs", nil, h).StatusCode)

	// limits are per key
	other := keyHeaders("root-key", "root-extra")
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/tenants/1/jobs", nil, other).StatusCode)
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":                "",
		"Bearer":          "",
		"Bearer ":         "",
		"Bearer kpd_abc":  "kpd_abc",
		"bearer  kpd_abc": "kpd_abc",
		"Basic kpd_abc":   "",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/agent/jobs", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, bearerToken(req), "header %q", header)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	l := newRateLimiter(config.APIRateLimitConfig{})
	for i := 0; i < 100; i++ {
		require.True(t, l.allow("k"))
	}
}

func TestClientFromContext_Default(t *testing.T) {
	c := clientFromContext(context.Background())
	assert.Equal(t, clientKeyUnknown, c.Name)
	assert.True(t, c.AllowsTenant(42))
}
