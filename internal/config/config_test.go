package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArowuTest/qrng-bridge/internal/entropy"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadDevice_Defaults(t *testing.T) {
	cfg, err := LoadDevice(env(nil))
	require.NoError(t, err)
	assert.Equal(t, entropy.DefaultConfig(), cfg)
}

func TestLoadDevice(t *testing.T) {
	cfg, err := LoadDevice(env(map[string]string{
		"QRNG_SOURCE_KIND":        "usb",
		"QRNG_DEVICE_INDEX":       "2",
		"QRNG_READ_STRATEGY":      "devicefile",
		"QRNG_MIX_WITH_FALLBACK":  "true",
		"QRNG_LOCKING":            "false",
		"QRNG_LOCK_ON_CREATE":     "1",
		"QRNG_DEVICE_PATH_FORMAT": "/dev/qrng%d",
		"QRNG_MAX_REQUEST_SIZE":   "4096",
	}))
	require.NoError(t, err)
	assert.Equal(t, entropy.Config{
		SourceKind:       entropy.KindUSB,
		DeviceIndex:      2,
		ReadStrategy:     entropy.StrategyDeviceFileRead,
		MixWithFallback:  true,
		Locking:          false,
		LockOnCreate:     true,
		DevicePathFormat: "/dev/qrng%d",
		MaxRequestSize:   4096,
	}, cfg)
	assert.Equal(t, "/dev/qrng2", cfg.DevicePath())
}

func TestLoadDevice_Errors(t *testing.T) {
	_, err := LoadDevice(env(map[string]string{
		"QRNG_SOURCE_KIND":       "firewire",
		"QRNG_READ_STRATEGY":     "dma",
		"QRNG_DEVICE_INDEX":      "zero",
		"QRNG_MIX_WITH_FALLBACK": "perhaps",
	}))
	require.Error(t, err)
	for _, want := range []string{"firewire", "dma", "QRNG_DEVICE_INDEX", "QRNG_MIX_WITH_FALLBACK"} {
		assert.Contains(t, err.Error(), want)
	}

	_, err = LoadDevice(env(map[string]string{"QRNG_DEVICE_INDEX": "-3"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device index")

	// The driver cannot serve a single read above 16 MiB.
	_, err = LoadDevice(env(map[string]string{"QRNG_MAX_REQUEST_SIZE": "33554432"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "driver limit")

	cfg, err := LoadDevice(env(map[string]string{"QRNG_MAX_REQUEST_SIZE": "16777216"}))
	require.NoError(t, err)
	assert.Equal(t, entropy.DefaultMaxRequestSize, cfg.MaxRequestSize)
}

func TestLoad(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "s3cret")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "qrng")
	t.Setenv("DB_NAME", "qrng")
	t.Setenv("PORT", "")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_SSLMODE", "")
	t.Setenv("BOOTSTRAP_ADMIN_USERNAME", "")
	t.Setenv("BOOTSTRAP_ADMIN_PASSWORD", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("QRNG_MIX_WITH_FALLBACK", "true")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "5432", c.DBPort)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.AllowedOrigins)
	assert.True(t, c.Device.MixWithFallback)
	assert.Same(t, c, Cfg)
}

func TestLoad_Missing(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("BOOTSTRAP_ADMIN_USERNAME", "root")
	t.Setenv("BOOTSTRAP_ADMIN_PASSWORD", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET_KEY")
	assert.Contains(t, err.Error(), "DB_HOST")
	assert.Contains(t, err.Error(), "BOOTSTRAP_ADMIN_PASSWORD")
}
