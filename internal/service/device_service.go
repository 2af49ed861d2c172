package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"kitchenprint/internal/database"
	"kitchenprint/internal/domain"
	"kitchenprint/internal/models"

	"github.com/rs/zerolog"
)

const tokenPrefix = "kpd_"

type DeviceService struct {
	store     domain.DeviceStore
	threshold time.Duration
	now       func() time.Time
	logger    *zerolog.Logger
}

func NewDeviceService(store domain.DeviceStore, threshold time.Duration, logger *zerolog.Logger) *DeviceService {
	if threshold <= 0 {
		threshold = models.ConnectedThreshold
	}
	return &DeviceService{
		store:     store,
		threshold: threshold,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
}

// Register creates a device and returns its bearer token. The token is shown once and only its hash is kept.
func (s *DeviceService) Register(ctx context.Context, tenantID, restaurantID int64, name, role string) (*models.PrintDevice, string, error) {
	if tenantID <= 0 {
		return nil, "", errors.New("tenant id is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, "", errors.New("device name is required")
	}
	if role != "" && !models.ValidRole(role) {
		return nil, "", fmt.Errorf("invalid device role: %q", role)
	}

	token, err := newToken()
	if err != nil {
		return nil, "", err
	}

	device := &models.PrintDevice{
		TenantID:     tenantID,
		RestaurantID: restaurantID,
		Name:         name,
		Role:         role,
		TokenHash:    HashToken(token),
		IsActive:     true,
	}
	if err := s.store.CreateDevice(ctx, device); err != nil {
		return nil, "", err
	}

	s.logger.Info().
		Int64("tenant_id", tenantID).
		Int64("device_id", device.ID).
		Str("name", name).
		Msg("Print device registered")
	return device, token, nil
}

// Authenticate resolves a bearer token to an active device and records it as seen.
func (s *DeviceService) Authenticate(ctx context.Context, token string) (*models.PrintDevice, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthorized
	}

	device, err := s.store.GetDeviceByTokenHash(ctx, HashToken(token))
	if errors.Is(err, database.ErrDeviceNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if !device.IsActive {
		return nil, ErrUnauthorized
	}

	now := s.now()
	if err := s.store.TouchDevice(ctx, device.ID, now); err != nil {
		return nil, err
	}
	device.LastSeenAt = &now
	return device, nil
}

// RecordVersion stores the agent version. An empty version is ignored.
func (s *DeviceService) RecordVersion(ctx context.Context, deviceID int64, version string) error {
	if version == "" {
		return nil
	}
	return s.store.SetDeviceVersion(ctx, deviceID, version)
}

// RecordError stores the error of a failed print. An empty message is ignored, so the
// last error is only ever replaced by a newer one.
func (s *DeviceService) RecordError(ctx context.Context, deviceID int64, lastError string) error {
	if lastError == "" {
		return nil
	}
	return s.store.SetDeviceError(ctx, deviceID, lastError)
}

// List returns the tenant's devices with connectivity resolved at call time.
func (s *DeviceService) List(ctx context.Context, tenantID int64) ([]models.DeviceStatus, error) {
	devices, err := s.store.ListDevices(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]models.DeviceStatus, 0, len(devices))
	for _, d := range devices {
		out = append(out, models.DeviceStatus{PrintDevice: *d, Connected: d.Connected(now, s.threshold)})
	}
	return out, nil
}

func (s *DeviceService) Deactivate(ctx context.Context, tenantID, deviceID int64) error {
	return s.store.SetDeviceActive(ctx, tenantID, deviceID, false)
}

// HashToken returns the hex sha256 of a device token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate device token: %w", err)
	}
	return tokenPrefix + hex.EncodeToString(b), nil
}
