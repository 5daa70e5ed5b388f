package main

import (
	"os"
	"time"

	"github.com/armon/go-metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/ArowuTest/qrng-bridge/internal/auth"
	"github.com/ArowuTest/qrng-bridge/internal/config"
	"github.com/ArowuTest/qrng-bridge/internal/entropy"
	"github.com/ArowuTest/qrng-bridge/internal/handlers"
	"github.com/ArowuTest/qrng-bridge/internal/models"
	"github.com/ArowuTest/qrng-bridge/internal/quantis"
	"github.com/ArowuTest/qrng-bridge/internal/rng"
	"github.com/ArowuTest/qrng-bridge/internal/store"
)

func main() {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "qrng-bridge",
		Level: hclog.LevelFromString(os.Getenv("LOG_LEVEL")),
	})
	if err := run(logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(logger hclog.Logger) error {
	// Load config & init
	appCfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.SetLevel(hclog.LevelFromString(appCfg.LogLevel))
	auth.Init(appCfg.JWTSecret)

	// Metrics: keep one minute of 10s intervals in memory for /metrics
	sink := metrics.NewInmemSink(10*time.Second, time.Minute)
	metricsCfg := metrics.DefaultConfig("qrng-bridge")
	metricsCfg.EnableHostname = false
	if _, err := metrics.NewGlobal(metricsCfg, sink); err != nil {
		return err
	}

	// Entropy source and provider
	var opts []quantis.Option
	if appCfg.Device.DevicePathFormat != "" {
		opts = append(opts, quantis.WithDevicePath(appCfg.Device.SourceKind, appCfg.Device.DevicePathFormat))
	}
	adapter, err := entropy.NewAdapter(appCfg.Device, quantis.New(opts...),
		entropy.WithLogger(logger.Named("entropy")))
	if err != nil {
		return err
	}
	provider := rng.NewProvider(adapter, rng.WithLogger(logger.Named("rng")))
	logger.Info("entropy source configured",
		"kind", appCfg.Device.SourceKind.String(),
		"index", appCfg.Device.DeviceIndex,
		"strategy", adapter.Strategy(),
		"mix", appCfg.Device.MixWithFallback)

	// Persistence
	db, err := config.InitDB(appCfg)
	if err != nil {
		return err
	}
	if err := models.Migrate(db); err != nil {
		return err
	}
	st := store.New(db)
	if err := bootstrapAdmin(st, appCfg, logger); err != nil {
		return err
	}

	// Setup router
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), config.CORSMiddleware())
	handlers.New(provider, st, st, sink, logger.Named("http")).Register(r)

	logger.Info("listening", "port", appCfg.Port)
	return r.Run(":" + appCfg.Port)
}

// bootstrapAdmin creates the first admin when the operator table is empty.
func bootstrapAdmin(st *store.Store, c *config.AppConfig, logger hclog.Logger) error {
	n, err := st.CountOperators()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if c.BootstrapUsername == "" {
		logger.Warn("no operators exist and BOOTSTRAP_ADMIN_USERNAME is unset; nobody can log in")
		return nil
	}
	hashed, err := handlers.HashPassword(c.BootstrapPassword)
	if err != nil {
		return err
	}
	op := models.Operator{
		ID:           uuid.New(),
		Username:     c.BootstrapUsername,
		Email:        c.BootstrapUsername + "@localhost",
		PasswordHash: hashed,
		Role:         models.RoleAdmin,
		Status:       models.StatusActive,
	}
	if err := st.CreateOperator(&op); err != nil {
		return err
	}
	logger.Info("bootstrap admin created", "username", op.Username)
	return nil
}
