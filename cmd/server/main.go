// Command server starts the clipstream API HTTP service.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"clipstream/internal/api"
	"clipstream/internal/assets"
	"clipstream/internal/auth"
	"clipstream/internal/observability/logging"
	"clipstream/internal/server"
	"clipstream/internal/storage"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address")
	dataPath := flag.String("data", "", "path to JSON datastore")
	storageDriver := flag.String("storage-driver", "", "datastore driver (json or postgres)")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string")
	postgresMaxConns := flag.Int("postgres-max-conns", 0, "maximum connections in the Postgres pool")
	postgresMinConns := flag.Int("postgres-min-conns", 0, "minimum idle connections maintained by the Postgres pool")
	postgresMaxConnLifetime := flag.Duration("postgres-max-conn-lifetime", 0, "maximum lifetime for a pooled Postgres connection")
	postgresMaxConnIdle := flag.Duration("postgres-max-conn-idle", 0, "maximum idle time for a pooled Postgres connection")
	postgresHealthInterval := flag.Duration("postgres-health-interval", 0, "interval between Postgres health checks")
	postgresAppName := flag.String("postgres-app-name", "", "application_name reported to Postgres")
	accessSecret := flag.String("token-access-secret", "", "HMAC secret for access tokens")
	refreshSecret := flag.String("token-refresh-secret", "", "HMAC secret for refresh tokens")
	accessTTL := flag.Duration("token-access-ttl", 0, "access token lifetime")
	refreshTTL := flag.Duration("token-refresh-ttl", 0, "refresh token lifetime")
	objectEndpoint := flag.String("object-endpoint", "", "object storage endpoint (e.g. http://127.0.0.1:9000)")
	objectRegion := flag.String("object-region", "", "object storage region")
	objectAccessKey := flag.String("object-access-key", "", "object storage access key")
	objectSecretKey := flag.String("object-secret-key", "", "object storage secret key")
	objectBucket := flag.String("object-bucket", "", "object storage bucket name")
	objectPrefix := flag.String("object-prefix", "", "object storage key prefix")
	objectPublicEndpoint := flag.String("object-public-endpoint", "", "public endpoint used for asset URLs")
	objectPathStyle := flag.Bool("object-path-style", false, "use path-style object storage addressing")
	objectTimeout := flag.Duration("object-timeout", 0, "timeout for object storage requests")
	uploadDir := flag.String("upload-dir", "", "directory for spooling multipart uploads")
	tlsCert := flag.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "path to TLS private key file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log format (json or text)")
	globalRPS := flag.Float64("rate-global-rps", 0, "global request rate limit in requests per second")
	globalBurst := flag.Int("rate-global-burst", 0, "global rate limit burst allowance")
	loginLimit := flag.Int("rate-login-limit", 0, "maximum login attempts per window for a single IP")
	loginWindow := flag.Duration("rate-login-window", 0, "window for counting login attempts")
	redisAddr := flag.String("rate-redis-addr", "", "Redis address for distributed login throttling")
	redisPassword := flag.String("rate-redis-password", "", "Redis password for distributed login throttling")
	redisTimeout := flag.Duration("rate-redis-timeout", 0, "timeout for Redis operations")
	corsOrigins := flag.String("cors-origins", "", "comma separated origins allowed to call the API")
	cookieSecureAlways := flag.Bool("cookie-secure-always", false, "always set the Secure attribute on session cookies")
	flag.Parse()

	logger := logging.Init(logging.Config{
		Level:  firstNonEmpty(*logLevel, os.Getenv("CLIPSTREAM_LOG_LEVEL")),
		Format: firstNonEmpty(*logFormat, os.Getenv("CLIPSTREAM_LOG_FORMAT")),
	})
	auditLogger := logging.WithComponent(logger, "audit")

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer bootCancel()

	driver := strings.ToLower(firstNonEmpty(*storageDriver, os.Getenv("CLIPSTREAM_STORAGE_DRIVER"), "json"))
	dsn := firstNonEmpty(*postgresDSN, os.Getenv("CLIPSTREAM_POSTGRES_DSN"), os.Getenv("DATABASE_URL"))

	var (
		store storage.Repository
		err   error
	)
	switch driver {
	case "json":
		dataFile := firstNonEmpty(*dataPath, os.Getenv("CLIPSTREAM_DATA"), "clipstream.json")
		store, err = storage.NewJSONRepository(dataFile)
	case "postgres":
		if dsn == "" {
			logger.Error("postgres storage selected without DSN")
			os.Exit(1)
		}
		var pgOptions []storage.PostgresOption
		maxConns := resolveInt(*postgresMaxConns, "CLIPSTREAM_POSTGRES_MAX_CONNS")
		minConns := resolveInt(*postgresMinConns, "CLIPSTREAM_POSTGRES_MIN_CONNS")
		if maxConns > 0 || minConns > 0 {
			pgOptions = append(pgOptions, storage.WithPostgresPoolLimits(int32(maxConns), int32(minConns)))
		}
		maxLifetime := resolveDuration(*postgresMaxConnLifetime, "CLIPSTREAM_POSTGRES_MAX_CONN_LIFETIME", 0)
		maxIdle := resolveDuration(*postgresMaxConnIdle, "CLIPSTREAM_POSTGRES_MAX_CONN_IDLE", 0)
		healthInterval := resolveDuration(*postgresHealthInterval, "CLIPSTREAM_POSTGRES_HEALTH_INTERVAL", 0)
		if maxLifetime > 0 || maxIdle > 0 || healthInterval > 0 {
			pgOptions = append(pgOptions, storage.WithPostgresPoolDurations(maxLifetime, maxIdle, healthInterval))
		}
		if appName := firstNonEmpty(*postgresAppName, os.Getenv("CLIPSTREAM_POSTGRES_APP_NAME"), "clipstream"); appName != "" {
			pgOptions = append(pgOptions, storage.WithPostgresAppName(appName))
		}
		store, err = storage.NewPostgresRepository(bootCtx, dsn, pgOptions...)
	default:
		logger.Error("unsupported storage driver", "driver", driver)
		os.Exit(1)
	}
	if err != nil {
		logger.Error("failed to open datastore", "error", err)
		os.Exit(1)
	}

	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:  []byte(firstNonEmpty(*accessSecret, os.Getenv("CLIPSTREAM_TOKEN_ACCESS_SECRET"))),
		RefreshSecret: []byte(firstNonEmpty(*refreshSecret, os.Getenv("CLIPSTREAM_TOKEN_REFRESH_SECRET"))),
		AccessTTL:     resolveDuration(*accessTTL, "CLIPSTREAM_TOKEN_ACCESS_TTL", 0),
		RefreshTTL:    resolveDuration(*refreshTTL, "CLIPSTREAM_TOKEN_REFRESH_TTL", 0),
	})
	if err != nil {
		logger.Error("failed to configure token issuer", "error", err)
		os.Exit(1)
	}
	sessions := auth.NewSessionService(issuer, store, logging.WithComponent(logger, "sessions"))

	objectCfg := assets.S3Config{
		Endpoint:       firstNonEmpty(*objectEndpoint, os.Getenv("CLIPSTREAM_OBJECT_ENDPOINT")),
		Region:         firstNonEmpty(*objectRegion, os.Getenv("CLIPSTREAM_OBJECT_REGION")),
		AccessKey:      firstNonEmpty(*objectAccessKey, os.Getenv("CLIPSTREAM_OBJECT_ACCESS_KEY")),
		SecretKey:      firstNonEmpty(*objectSecretKey, os.Getenv("CLIPSTREAM_OBJECT_SECRET_KEY")),
		Bucket:         firstNonEmpty(*objectBucket, os.Getenv("CLIPSTREAM_OBJECT_BUCKET")),
		Prefix:         firstNonEmpty(*objectPrefix, os.Getenv("CLIPSTREAM_OBJECT_PREFIX")),
		PublicEndpoint: firstNonEmpty(*objectPublicEndpoint, os.Getenv("CLIPSTREAM_OBJECT_PUBLIC_ENDPOINT")),
		UsePathStyle:   resolveBool(*objectPathStyle, "CLIPSTREAM_OBJECT_PATH_STYLE"),
		RequestTimeout: resolveDuration(*objectTimeout, "CLIPSTREAM_OBJECT_TIMEOUT", 0),
	}
	objectClient, err := assets.NewS3Client(bootCtx, objectCfg)
	if err != nil {
		logger.Error("failed to configure object storage", "error", err)
		os.Exit(1)
	}
	coordinator := assets.NewCoordinator(objectClient, logging.WithComponent(logger, "assets"))

	spoolDir := firstNonEmpty(*uploadDir, os.Getenv("CLIPSTREAM_UPLOAD_DIR"), os.TempDir())
	if err := os.MkdirAll(spoolDir, 0o755); err != nil {
		logger.Error("failed to create upload directory", "dir", spoolDir, "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(store, sessions, coordinator, logger)
	handler.UploadDir = spoolDir
	if resolveBool(*cookieSecureAlways, "CLIPSTREAM_COOKIE_SECURE_ALWAYS") {
		handler.SessionCookiePolicy = api.SessionCookiePolicy{SecureMode: api.SessionCookieSecureAlways}
	}

	rateCfg := server.RateLimitConfig{
		GlobalRPS:     resolveFloat(*globalRPS, "CLIPSTREAM_RATE_GLOBAL_RPS"),
		GlobalBurst:   resolveInt(*globalBurst, "CLIPSTREAM_RATE_GLOBAL_BURST"),
		LoginLimit:    resolveInt(*loginLimit, "CLIPSTREAM_RATE_LOGIN_LIMIT"),
		LoginWindow:   resolveDuration(*loginWindow, "CLIPSTREAM_RATE_LOGIN_WINDOW", time.Minute),
		RedisAddr:     firstNonEmpty(*redisAddr, os.Getenv("CLIPSTREAM_RATE_REDIS_ADDR")),
		RedisPassword: firstNonEmpty(*redisPassword, os.Getenv("CLIPSTREAM_RATE_REDIS_PASSWORD")),
		RedisTimeout:  resolveDuration(*redisTimeout, "CLIPSTREAM_RATE_REDIS_TIMEOUT", 2*time.Second),
	}

	listenAddr := firstNonEmpty(*addr, os.Getenv("CLIPSTREAM_ADDR"), "127.0.0.1:8080")
	srv, err := server.New(handler, server.Config{
		Addr: listenAddr,
		TLS: server.TLSConfig{
			CertFile: firstNonEmpty(*tlsCert, os.Getenv("CLIPSTREAM_TLS_CERT")),
			KeyFile:  firstNonEmpty(*tlsKey, os.Getenv("CLIPSTREAM_TLS_KEY")),
		},
		RateLimit:   rateCfg,
		CORS:        server.CORSConfig{AllowedOrigins: splitAndTrim(firstNonEmpty(*corsOrigins, os.Getenv("CLIPSTREAM_CORS_ORIGINS")))},
		Logger:      logger,
		AuditLogger: auditLogger,
	})
	if err != nil {
		logger.Error("failed to initialise server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweepStop := startUploadSweeper(ctx, logging.WithComponent(logger, "upload-sweeper"), spoolDir, 15*time.Minute, time.Hour)
	defer sweepStop()

	logger.Info("clipstream API listening", "addr", listenAddr, "storage", driver)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Close(closeCtx); err != nil {
		logger.Warn("failed to close datastore", "error", err)
	}
	logger.Info("server stopped")
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func splitAndTrim(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func resolveFloat(flagValue float64, envKey string) float64 {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.ParseFloat(strings.TrimSpace(env), 64); err == nil {
			return value
		}
	}
	return 0
}

func resolveInt(flagValue int, envKey string) int {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.Atoi(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return 0
}

func resolveDuration(flagValue time.Duration, envKey string, fallback time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := time.ParseDuration(env); err == nil {
			return value
		}
	}
	if fallback > 0 {
		return fallback
	}
	return 0
}

func resolveBool(flagValue bool, envKey string) bool {
	if flagValue {
		return true
	}
	if env, ok := os.LookupEnv(envKey); ok {
		if value, err := strconv.ParseBool(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return false
}
