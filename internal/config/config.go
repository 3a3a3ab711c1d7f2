package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ahlev/Parlaybot/internal/platform/logging"
)

const (
	StoreDriverFile     = "file"
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	DispatchLocal  = "local"
	DispatchQStash = "qstash"
)

// Config stores runtime configuration for the bot.
type Config struct {
	AppEnv                      string
	ServiceName                 string
	ServiceVersion              string
	LogLevel                    logging.Level
	DiscordEnabled              bool
	DiscordBotToken             string
	DiscordCommandPrefix        string
	DiscordAnnounceChannelID    string
	StoreDriver                 string
	DataDir                     string
	DBURL                       string
	WeeklyResetEnabled          bool
	WeeklyResetInterval         time.Duration
	WeeklyResetDispatch         string
	HTTPEnabled                 bool
	HTTPAddr                    string
	CORSAllowedOrigins          []string
	ReadTimeout                 time.Duration
	WriteTimeout                time.Duration
	InternalJobToken            string
	QStashBaseURL               string
	QStashToken                 string
	QStashTargetBaseURL         string
	QStashRetries               int
	QStashCircuitEnabled        bool
	QStashCircuitFailureCount   int
	QStashCircuitOpenTimeout    time.Duration
	QStashCircuitHalfOpenMaxReq int
	UptraceEnabled              bool
	UptraceDSN                  string
	PyroscopeEnabled            bool
	PyroscopeServerAddress      string
	PyroscopeAppName            string
	PyroscopeAuthToken          string
	PyroscopeBasicAuthUser      string
	PyroscopeBasicAuthPassword  string
	PyroscopeUploadRate         time.Duration
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	discordEnabled, err := strconv.ParseBool(getEnv("DISCORD_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse DISCORD_ENABLED: %w", err)
	}
	discordToken := strings.TrimSpace(getEnv("DISCORD_BOT_TOKEN", ""))
	if discordEnabled && discordToken == "" {
		return Config{}, fmt.Errorf("DISCORD_BOT_TOKEN is required when DISCORD_ENABLED=true")
	}
	commandPrefix := strings.TrimSpace(getEnv("DISCORD_COMMAND_PREFIX", "/"))
	if strings.ContainsFunc(commandPrefix, func(r rune) bool { return r == ' ' || r == '\t' }) {
		return Config{}, fmt.Errorf("DISCORD_COMMAND_PREFIX must not contain whitespace")
	}

	storeDriver, err := parseStoreDriver(getEnv("STORE_DRIVER", StoreDriverFile))
	if err != nil {
		return Config{}, err
	}
	dataDir := strings.TrimSpace(getEnv("DATA_DIR", "."))
	dbURL := strings.TrimSpace(getEnv("DB_URL", ""))
	if storeDriver == StoreDriverPostgres && dbURL == "" {
		return Config{}, fmt.Errorf("DB_URL is required when STORE_DRIVER=postgres")
	}

	weeklyResetEnabled, err := strconv.ParseBool(getEnv("WEEKLY_RESET_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse WEEKLY_RESET_ENABLED: %w", err)
	}
	weeklyResetInterval, err := time.ParseDuration(getEnv("WEEKLY_RESET_INTERVAL", "168h"))
	if err != nil {
		return Config{}, fmt.Errorf("parse WEEKLY_RESET_INTERVAL: %w", err)
	}
	if weeklyResetInterval <= 0 {
		return Config{}, fmt.Errorf("WEEKLY_RESET_INTERVAL must be > 0")
	}
	weeklyResetDispatch, err := parseDispatch(getEnv("WEEKLY_RESET_DISPATCH", DispatchLocal))
	if err != nil {
		return Config{}, err
	}

	httpEnabled, err := strconv.ParseBool(getEnv("HTTP_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse HTTP_ENABLED: %w", err)
	}
	readTimeout, err := time.ParseDuration(getEnv("APP_READ_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_READ_TIMEOUT: %w", err)
	}
	writeTimeout, err := time.ParseDuration(getEnv("APP_WRITE_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_WRITE_TIMEOUT: %w", err)
	}

	qstashRetries, err := getEnvAsInt("QSTASH_RETRIES", 3)
	if err != nil {
		return Config{}, fmt.Errorf("parse QSTASH_RETRIES: %w", err)
	}
	if qstashRetries < 0 {
		return Config{}, fmt.Errorf("QSTASH_RETRIES must be >= 0")
	}
	qstashCircuitEnabled, err := strconv.ParseBool(getEnv("QSTASH_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse QSTASH_CIRCUIT_ENABLED: %w", err)
	}
	qstashCircuitFailureCount, err := getEnvAsInt("QSTASH_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse QSTASH_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if qstashCircuitFailureCount < 1 {
		return Config{}, fmt.Errorf("QSTASH_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	qstashCircuitOpenTimeout, err := time.ParseDuration(getEnv("QSTASH_CIRCUIT_OPEN_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse QSTASH_CIRCUIT_OPEN_TIMEOUT: %w", err)
	}
	if qstashCircuitOpenTimeout <= 0 {
		return Config{}, fmt.Errorf("QSTASH_CIRCUIT_OPEN_TIMEOUT must be > 0")
	}
	qstashCircuitHalfOpenMaxReq, err := getEnvAsInt("QSTASH_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse QSTASH_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if qstashCircuitHalfOpenMaxReq < 1 {
		return Config{}, fmt.Errorf("QSTASH_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}
	qstashToken := strings.TrimSpace(getEnv("QSTASH_TOKEN", ""))
	qstashTargetBaseURL := strings.TrimSpace(getEnv("QSTASH_TARGET_BASE_URL", ""))
	internalJobToken := strings.TrimSpace(getEnv("INTERNAL_JOB_TOKEN", ""))
	if weeklyResetEnabled && weeklyResetDispatch == DispatchQStash {
		if qstashToken == "" {
			return Config{}, fmt.Errorf("QSTASH_TOKEN is required when WEEKLY_RESET_DISPATCH=qstash")
		}
		if qstashTargetBaseURL == "" {
			return Config{}, fmt.Errorf("QSTASH_TARGET_BASE_URL is required when WEEKLY_RESET_DISPATCH=qstash")
		}
		if internalJobToken == "" {
			return Config{}, fmt.Errorf("INTERNAL_JOB_TOKEN is required when WEEKLY_RESET_DISPATCH=qstash")
		}
		if !httpEnabled {
			return Config{}, fmt.Errorf("HTTP_ENABLED must be true when WEEKLY_RESET_DISPATCH=qstash")
		}
	}

	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceDSN == "" {
		uptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	pyroscopeEnabled, err := strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	pyroscopeServerAddress := strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if pyroscopeEnabled && pyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	pyroscopeUploadRate, err := time.ParseDuration(getEnv("PYROSCOPE_UPLOAD_RATE", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_UPLOAD_RATE: %w", err)
	}
	if pyroscopeUploadRate <= 0 {
		return Config{}, fmt.Errorf("PYROSCOPE_UPLOAD_RATE must be > 0")
	}

	cfg := Config{
		AppEnv:                      appEnv,
		ServiceName:                 getEnv("APP_SERVICE_NAME", "parlaybot"),
		ServiceVersion:              getEnv("APP_SERVICE_VERSION", "dev"),
		LogLevel:                    logging.ParseLevel(getEnv("APP_LOG_LEVEL", "info")),
		DiscordEnabled:              discordEnabled,
		DiscordBotToken:             discordToken,
		DiscordCommandPrefix:        commandPrefix,
		DiscordAnnounceChannelID:    strings.TrimSpace(getEnv("DISCORD_ANNOUNCE_CHANNEL_ID", "")),
		StoreDriver:                 storeDriver,
		DataDir:                     dataDir,
		DBURL:                       dbURL,
		WeeklyResetEnabled:          weeklyResetEnabled,
		WeeklyResetInterval:         weeklyResetInterval,
		WeeklyResetDispatch:         weeklyResetDispatch,
		HTTPEnabled:                 httpEnabled,
		HTTPAddr:                    getEnv("APP_HTTP_ADDR", ":8080"),
		CORSAllowedOrigins:          splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		ReadTimeout:                 readTimeout,
		WriteTimeout:                writeTimeout,
		InternalJobToken:            internalJobToken,
		QStashBaseURL:               strings.TrimSpace(getEnv("QSTASH_BASE_URL", "https://qstash.upstash.io")),
		QStashToken:                 qstashToken,
		QStashTargetBaseURL:         qstashTargetBaseURL,
		QStashRetries:               qstashRetries,
		QStashCircuitEnabled:        qstashCircuitEnabled,
		QStashCircuitFailureCount:   qstashCircuitFailureCount,
		QStashCircuitOpenTimeout:    qstashCircuitOpenTimeout,
		QStashCircuitHalfOpenMaxReq: qstashCircuitHalfOpenMaxReq,
		UptraceEnabled:              uptraceEnabled,
		UptraceDSN:                  uptraceDSN,
		PyroscopeEnabled:            pyroscopeEnabled,
		PyroscopeServerAddress:      pyroscopeServerAddress,
		PyroscopeAuthToken:          strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
		PyroscopeBasicAuthUser:      strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", "")),
		PyroscopeBasicAuthPassword:  strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", "")),
		PyroscopeUploadRate:         pyroscopeUploadRate,
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	if cfg.PyroscopeEnabled && cfg.PyroscopeAppName == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_APP_NAME cannot be empty when PYROSCOPE_ENABLED=true")
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS cannot be empty")
	}
	if !cfg.DiscordEnabled && !cfg.HTTPEnabled && !cfg.WeeklyResetEnabled {
		return Config{}, fmt.Errorf("at least one of DISCORD_ENABLED, HTTP_ENABLED, WEEKLY_RESET_ENABLED must be true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	items := strings.Split(raw, ",")
	for _, item := range items {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			value := strings.TrimSpace(parts[1])
			return strings.Trim(value, "\"'")
		}
	}

	return ""
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}

func parseStoreDriver(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case StoreDriverFile, StoreDriverPostgres, StoreDriverMemory:
		return value, nil
	default:
		return "", fmt.Errorf("invalid STORE_DRIVER %q: valid values are %s, %s, %s", v, StoreDriverFile, StoreDriverPostgres, StoreDriverMemory)
	}
}

func parseDispatch(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case DispatchLocal, DispatchQStash:
		return value, nil
	default:
		return "", fmt.Errorf("invalid WEEKLY_RESET_DISPATCH %q: valid values are %s, %s", v, DispatchLocal, DispatchQStash)
	}
}
