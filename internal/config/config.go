package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all the configuration for the application.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Lock     LockConfig
	Upload   UploadConfig
	SMTP     SMTPConfig
	Mail     MailConfig
	Notify   NotifyConfig
	Auth     AuthConfig
	Log      LogConfig
}

// ServerConfig holds the server configuration.
type ServerConfig struct {
	Port    string `mapstructure:"port"`
	Env     string `mapstructure:"env"`
	BaseURL string `mapstructure:"baseurl"`
}

// StoreConfig selects the document store backend.
// Driver is one of "file", "bolt" or "postgres".
type StoreConfig struct {
	Driver   string `mapstructure:"driver"`
	Dir      string `mapstructure:"dir"`
	BoltPath string `mapstructure:"boltpath"`
}

// DatabaseConfig holds the database configuration.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// RedisConfig holds the Redis configuration.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// LockConfig controls per-key locking. Driver is "local" or "redis".
type LockConfig struct {
	Driver  string        `mapstructure:"driver"`
	Timeout time.Duration `mapstructure:"timeout"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// UploadConfig controls where verification screenshots are kept.
type UploadConfig struct {
	Driver      string `mapstructure:"driver"`
	Dir         string `mapstructure:"dir"`
	MaxBytes    int64  `mapstructure:"maxbytes"`
	B2AccountID string `mapstructure:"b2accountid"`
	B2AppKey    string `mapstructure:"b2appkey"`
	B2Bucket    string `mapstructure:"b2bucket"`
}

type SMTPConfig struct {
	From     string `mapstructure:"from"`
	Password string `mapstructure:"password"`
	Username string `mapstructure:"username"`
	Port     int    `mapstructure:"port"`
	Host     string `mapstructure:"host"`
}

// MailConfig selects the email transport: "smtp" or "log".
type MailConfig struct {
	Driver string `mapstructure:"driver"`
	// TemplateDir replaces embedded email templates with <id>.tmpl files found there.
	TemplateDir string `mapstructure:"templatedir"`
}

// NotifyConfig controls the background notification queue.
type NotifyConfig struct {
	MaxAttempts int           `mapstructure:"maxattempts"`
	Timeout     time.Duration `mapstructure:"timeout"`
	QueueSize   int           `mapstructure:"queuesize"`
	AdminEmail  string        `mapstructure:"adminemail"`
}

// AuthConfig holds account, token and session settings.
type AuthConfig struct {
	JWTSecret         string        `mapstructure:"jwtsecret"`
	JWTTTL            time.Duration `mapstructure:"jwtttl"`
	AllowedDomains    []string      `mapstructure:"alloweddomains"`
	AdminEmails       []string      `mapstructure:"adminemails"`
	OwnerEmails       []string      `mapstructure:"owneremails"`
	TokenTTL          time.Duration `mapstructure:"tokenttl"`
	TokenFailureDelay time.Duration `mapstructure:"tokenfailuredelay"`
}

// LogConfig controls the application logger.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"maxsizemb"`
	MaxAgeDays int    `mapstructure:"maxagedays"`
	MaxBackups int    `mapstructure:"maxbackups"`
}

// bindings maps structured keys to environment variables.
var bindings = map[string]string{
	"server.port":            "SERVER_PORT",
	"server.env":             "SERVER_ENV",
	"server.baseurl":         "SERVER_BASE_URL",
	"store.driver":           "STORE_DRIVER",
	"store.dir":              "STORE_DIR",
	"store.boltpath":         "STORE_BOLT_PATH",
	"database.url":           "DATABASE_URL",
	"redis.url":              "REDIS_URL",
	"lock.driver":            "LOCK_DRIVER",
	"lock.timeout":           "LOCK_TIMEOUT",
	"lock.ttl":               "LOCK_TTL",
	"upload.driver":          "UPLOAD_DRIVER",
	"upload.dir":             "UPLOAD_DIR",
	"upload.maxbytes":        "UPLOAD_MAX_BYTES",
	"upload.b2accountid":     "B2_ACCOUNT_ID",
	"upload.b2appkey":        "B2_APP_KEY",
	"upload.b2bucket":        "B2_BUCKET",
	"smtp.from":              "SMTP_FROM",
	"smtp.password":          "SMTP_PASSWORD",
	"smtp.username":          "SMTP_USERNAME",
	"smtp.port":              "SMTP_PORT",
	"smtp.host":              "SMTP_HOST",
	"mail.driver":            "MAIL_DRIVER",
	"mail.templatedir":       "MAIL_TEMPLATE_DIR",
	"notify.maxattempts":     "NOTIFY_MAX_ATTEMPTS",
	"notify.timeout":         "NOTIFY_TIMEOUT",
	"notify.queuesize":       "NOTIFY_QUEUE_SIZE",
	"notify.adminemail":      "NOTIFY_ADMIN_EMAIL",
	"auth.jwtsecret":         "JWT_SECRET",
	"auth.jwtttl":            "JWT_TTL",
	"auth.alloweddomains":    "ALLOWED_EMAIL_DOMAINS",
	"auth.adminemails":       "ADMIN_EMAILS",
	"auth.owneremails":       "OWNER_EMAILS",
	"auth.tokenttl":          "TOKEN_TTL",
	"auth.tokenfailuredelay": "TOKEN_FAILURE_DELAY",
	"log.level":              "LOG_LEVEL",
	"log.file":               "LOG_FILE",
	"log.maxsizemb":          "LOG_MAX_SIZE_MB",
	"log.maxagedays":         "LOG_MAX_AGE_DAYS",
	"log.maxbackups":         "LOG_MAX_BACKUPS",
}

// Load creates a new Config object from the .env file and environment variables.
func Load() *Config {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Load .env into process environment for BindEnv to work with file-based envs
	if err := godotenv.Load(); err != nil {
		log.Printf("godotenv could not load .env: %v", err)
	}

	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("error reading config file: %s", err)
		}
		log.Printf(".env file not found, relying on environment variables")
	} else {
		log.Printf("using config file: %s", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Fatalf("unable to decode config into struct: %v", err)
	}

	cfg.applyDefaults()
	return &cfg
}

// applyDefaults fills every unset field with its default.
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.Env == "" {
		c.Server.Env = "development"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost:" + c.Server.Port
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "file"
	}
	if c.Store.Dir == "" {
		c.Store.Dir = "data"
	}
	if c.Store.BoltPath == "" {
		c.Store.BoltPath = "data/next-class.db"
	}
	if c.Lock.Driver == "" {
		c.Lock.Driver = "local"
	}
	if c.Lock.Timeout <= 0 {
		c.Lock.Timeout = 10 * time.Second
	}
	if c.Lock.TTL <= 0 {
		c.Lock.TTL = 30 * time.Second
	}
	if c.Upload.Driver == "" {
		c.Upload.Driver = "disk"
	}
	if c.Upload.Dir == "" {
		c.Upload.Dir = "uploads/verification"
	}
	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = 5 << 20
	}
	if c.Mail.Driver == "" {
		if c.SMTP.Host != "" {
			c.Mail.Driver = "smtp"
		} else {
			c.Mail.Driver = "log"
		}
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.Notify.MaxAttempts <= 0 {
		c.Notify.MaxAttempts = 3
	}
	if c.Notify.Timeout <= 0 {
		c.Notify.Timeout = 15 * time.Second
	}
	if c.Notify.QueueSize <= 0 {
		c.Notify.QueueSize = 256
	}
	if c.Auth.JWTTTL <= 0 {
		c.Auth.JWTTTL = 72 * time.Hour
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Auth.TokenFailureDelay < 0 {
		c.Auth.TokenFailureDelay = 0
	}
	c.Auth.AllowedDomains = normalizeList(c.Auth.AllowedDomains)
	c.Auth.AdminEmails = normalizeList(c.Auth.AdminEmails)
	c.Auth.OwnerEmails = normalizeList(c.Auth.OwnerEmails)
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 64
	}
	if c.Log.MaxAgeDays <= 0 {
		c.Log.MaxAgeDays = 30
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 10
	}
}

// normalizeList lowercases, trims and splits comma separated entries.
func normalizeList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Default returns a Config populated only with defaults.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}
