package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-secure-stdlib/parseutil"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ArowuTest/qrng-bridge/internal/entropy"
)

var Cfg *AppConfig

// AppConfig holds all environment variables.
type AppConfig struct {
	Port           string
	LogLevel       string
	DBHost         string
	DBPort         string
	DBUser         string
	DBName         string
	DBPassword     string
	DBSSLMode      string
	JWTSecret      string
	AllowedOrigins []string

	// Bootstrap operator, created only when the operator table is empty.
	BootstrapUsername string
	BootstrapPassword string

	Device entropy.Config
}

// Load reads environment variables (and .env if present) and validates them.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	c := &AppConfig{
		Port:              os.Getenv("PORT"),
		LogLevel:          os.Getenv("LOG_LEVEL"),
		DBHost:            os.Getenv("DB_HOST"),
		DBPort:            os.Getenv("DB_PORT"),
		DBUser:            os.Getenv("DB_USER"),
		DBName:            os.Getenv("DB_NAME"),
		DBPassword:        os.Getenv("DB_PASSWORD"),
		DBSSLMode:         os.Getenv("DB_SSLMODE"),
		JWTSecret:         os.Getenv("JWT_SECRET_KEY"),
		BootstrapUsername: os.Getenv("BOOTSTRAP_ADMIN_USERNAME"),
		BootstrapPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
	}
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.DBPort == "" {
		c.DBPort = "5432"
	}
	if c.DBSSLMode == "" {
		c.DBSSLMode = "disable"
	}
	for _, o := range strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			c.AllowedOrigins = append(c.AllowedOrigins, o)
		}
	}

	var result *multierror.Error

	device, err := LoadDevice(os.Getenv)
	if err != nil {
		result = multierror.Append(result, err)
	}
	c.Device = device

	if c.JWTSecret == "" {
		result = multierror.Append(result, errors.New("JWT_SECRET_KEY is required"))
	}
	if c.DBHost == "" || c.DBUser == "" || c.DBName == "" {
		result = multierror.Append(result, errors.New("DB_HOST, DB_USER and DB_NAME are required"))
	}
	if (c.BootstrapUsername == "") != (c.BootstrapPassword == "") {
		result = multierror.Append(result, errors.New("BOOTSTRAP_ADMIN_USERNAME and BOOTSTRAP_ADMIN_PASSWORD must be set together"))
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	Cfg = c
	return c, nil
}

// LoadDevice builds the QRNG device configuration from QRNG_* variables,
// starting from entropy.DefaultConfig.
func LoadDevice(getenv func(string) string) (entropy.Config, error) {
	cfg := entropy.DefaultConfig()
	var result *multierror.Error

	if v := getenv("QRNG_SOURCE_KIND"); v != "" {
		kind, err := entropy.ParseKind(v)
		if err != nil {
			result = multierror.Append(result, err)
		}
		cfg.SourceKind = kind
	}
	if v := getenv("QRNG_READ_STRATEGY"); v != "" {
		strategy, err := entropy.ParseStrategy(v)
		if err != nil {
			result = multierror.Append(result, err)
		}
		cfg.ReadStrategy = strategy
	}
	if v := getenv("QRNG_DEVICE_INDEX"); v != "" {
		index, err := parseutil.SafeParseInt(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("QRNG_DEVICE_INDEX: %w", err))
		}
		cfg.DeviceIndex = index
	}
	if v := getenv("QRNG_MAX_REQUEST_SIZE"); v != "" {
		size, err := parseutil.SafeParseInt(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("QRNG_MAX_REQUEST_SIZE: %w", err))
		}
		cfg.MaxRequestSize = size
	}
	if v := getenv("QRNG_DEVICE_PATH_FORMAT"); v != "" {
		cfg.DevicePathFormat = v
	}

	for name, dst := range map[string]*bool{
		"QRNG_MIX_WITH_FALLBACK": &cfg.MixWithFallback,
		"QRNG_LOCKING":           &cfg.Locking,
		"QRNG_LOCK_ON_CREATE":    &cfg.LockOnCreate,
	} {
		v := getenv(name)
		if v == "" {
			continue
		}
		b, err := parseutil.ParseBool(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", name, err))
			continue
		}
		*dst = b
	}

	if err := result.ErrorOrNil(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// CORSMiddleware allows the configured origins, or any origin when none are set.
func CORSMiddleware() gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if Cfg != nil && len(Cfg.AllowedOrigins) > 0 {
		cc.AllowOrigins = Cfg.AllowedOrigins
	} else {
		cc.AllowAllOrigins = true
	}
	return cors.New(cc)
}

var DB *gorm.DB

// InitDB opens the audit/operator database with a detailed logger.
func InitDB(c *AppConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode,
	)

	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("config: failed to connect database: %w", err)
	}
	DB = db
	return db, nil
}
