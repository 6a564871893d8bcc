package bms

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Persisted settings live in one Redis hash, one field per key.
const (
	settingsHashKey = "settings"

	settingChargeLimit = "charge:limit"
	settingDeviceID    = "device:id"
	settingDeviceName  = "device:name"
)

// SettingsStore is the get/set contract for persisted configuration. Get
// returns "" without error for a key that has never been written.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

type redisSettings struct {
	client *redis.Client
}

func NewRedisSettings(client *redis.Client) SettingsStore {
	return &redisSettings{client: client}
}

func (s *redisSettings) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.HGet(ctx, settingsHashKey, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, nil
}

func (s *redisSettings) Set(ctx context.Context, key, value string) error {
	if err := s.client.HSet(ctx, settingsHashKey, key, value).Err(); err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// loadChargeLimit reads the persisted charge limit, falling back to the
// default on first boot (and writing the default back so the dashboard sees
// it). A stored value outside the valid range is ignored the same way an
// invalid command payload is.
func loadChargeLimit(ctx context.Context, store SettingsStore, logger *Logger) int {
	value, err := store.Get(ctx, settingChargeLimit)
	if err != nil {
		logger.Warnf("failed to load charge limit, using default %d%%: %v", defaultLimitPercent, err)
		return defaultLimitPercent
	}
	if value == "" {
		if err := store.Set(ctx, settingChargeLimit, strconv.Itoa(defaultLimitPercent)); err != nil {
			logger.Warnf("failed to store default charge limit: %v", err)
		}
		return defaultLimitPercent
	}

	limit, err := strconv.Atoi(value)
	if err != nil || limit < limitMin || limit > limitMax {
		logger.Warnf("stored charge limit %q invalid, using default %d%%", value, defaultLimitPercent)
		return defaultLimitPercent
	}
	return limit
}
