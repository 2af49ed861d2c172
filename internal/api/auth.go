package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"kitchenprint/internal/config"
	"kitchenprint/internal/models"
	"kitchenprint/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const (
	apiKeyHeaderDefault   = "x-api-key"
	apiExtraHeaderDefault = "x-api-extra"
	clientKeyUnknown      = "unknown"

	permWriteOrders   = "write:orders"
	permReadJobs      = "read:jobs"
	permWriteJobs     = "write:jobs"
	permReadDevices   = "read:devices"
	permProbePrinters = "probe:printers"
)

var (
	errPermissionDenied = errors.New("permission denied")
	errTenantDenied     = errors.New("tenant not allowed for this key")
)

type ctxKey int

const (
	ctxKeyClient ctxKey = iota
	ctxKeyDevice
)

// HTTPAuth provides API-key auth and per-key rate limiting for intake and operator endpoints.
type HTTPAuth struct {
	cfg     config.APIConfig
	clients map[string]config.APIClientKey
	limiter *rateLimiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	return &HTTPAuth{cfg: cfg, clients: m, limiter: newRateLimiter(cfg.RateLimit)}
}

// Require authenticates the caller and checks the permission and, for tenant routes, the tenant allowlist.
func (a *HTTPAuth) Require(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := config.APIClientKey{Name: clientKeyUnknown}

			if a.cfg.Auth.Enabled {
				c, err := a.checkAuth(r, permission)
				if err != nil {
					statusCode := http.StatusUnauthorized
					if errors.Is(err, errPermissionDenied) {
						statusCode = http.StatusForbidden
					}
					writeError(w, statusCode, err.Error())
					return
				}
				client = c
			}

			if raw := chi.URLParam(r, "tenantID"); raw != "" {
				tenantID, err := strconv.ParseInt(raw, 10, 64)
				if err != nil || tenantID <= 0 {
					writeError(w, http.StatusBadRequest, "invalid tenant id")
					return
				}
				if !client.AllowsTenant(tenantID) {
					writeError(w, http.StatusForbidden, errTenantDenied.Error())
					return
				}
			}

			if !a.limiter.allow(a.clientKey(r)) {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyClient, client)))
		})
	}
}

func (a *HTTPAuth) checkAuth(r *http.Request, permission string) (config.APIClientKey, error) {
	apiKey := strings.TrimSpace(r.Header.Get(a.apiKeyHeader()))
	extra := strings.TrimSpace(r.Header.Get(a.extraHeader()))
	if apiKey == "" || extra == "" {
		return config.APIClientKey{}, errors.New("missing api key headers")
	}

	client, ok := a.clients[apiKey]
	if !ok {
		return config.APIClientKey{}, errors.New("invalid api key")
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return config.APIClientKey{}, errors.New("invalid extra header")
	}

	if err := checkPermission(client, permission); err != nil {
		return config.APIClientKey{}, err
	}
	return client, nil
}

func checkPermission(client config.APIClientKey, required string) error {
	if required == "" {
		return nil
	}
	// If permissions list is empty, treat as allow-all.
	if len(client.Permissions) == 0 {
		return nil
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return nil
		}
	}
	return errPermissionDenied
}

func (a *HTTPAuth) apiKeyHeader() string {
	if h := strings.TrimSpace(strings.ToLower(a.cfg.Auth.HeaderAPIKey)); h != "" {
		return h
	}
	return apiKeyHeaderDefault
}

func (a *HTTPAuth) extraHeader() string {
	if h := strings.TrimSpace(strings.ToLower(a.cfg.Auth.HeaderExtra)); h != "" {
		return h
	}
	return apiExtraHeaderDefault
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.apiKeyHeader())); apiKey != "" {
		return apiKey
	}
	return remoteHost(r)
}

func clientFromContext(ctx context.Context) config.APIClientKey {
	if c, ok := ctx.Value(ctxKeyClient).(config.APIClientKey); ok {
		return c
	}
	return config.APIClientKey{Name: clientKeyUnknown}
}

// DeviceAuth resolves the bearer token of agent calls and rate limits per device.
type DeviceAuth struct {
	agent   *service.AgentService
	limiter *rateLimiter
	logger  *zerolog.Logger
}

func NewDeviceAuth(agent *service.AgentService, cfg config.APIRateLimitConfig, logger *zerolog.Logger) *DeviceAuth {
	return &DeviceAuth{agent: agent, limiter: newRateLimiter(cfg), logger: logger}
}

func (a *DeviceAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		device, err := a.agent.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, service.ErrUnauthorized) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			a.logger.Error().Err(err).Msg("Device authentication failed")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		if !a.limiter.allow(strconv.FormatInt(device.ID, 10)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyDevice, device)))
	})
}

func deviceFromContext(ctx context.Context) *models.PrintDevice {
	d, _ := ctx.Value(ctxKeyDevice).(*models.PrintDevice)
	return d
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}
