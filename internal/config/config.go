package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/semmidev/custos/internal/domain"
)

type Config struct {
	App           AppConfig           `mapstructure:"app"`
	State         StateConfig         `mapstructure:"state"`
	HTTP          HTTPConfig          `mapstructure:"http"`
	Cleanup       CleanupConfig       `mapstructure:"cleanup"`
	Engines       EnginesConfig       `mapstructure:"engines"`
	Backup        BackupConfig        `mapstructure:"backup"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Jobs          []JobConfig         `mapstructure:"jobs"`
}

type AppConfig struct {
	Name          string `mapstructure:"name"`
	LogLevel      string `mapstructure:"log_level"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
	LogMaxAgeDays int    `mapstructure:"log_max_age_days"`
}

type StateConfig struct {
	JobsFile      string `mapstructure:"jobs_file"`
	ExecutionsDir string `mapstructure:"executions_dir"`
}

type HTTPConfig struct {
	// Listen is the address for /metrics and /status. Empty disables the server.
	Listen string `mapstructure:"listen"`
	// GDriveClientSecret enables the Drive OAuth helper routes.
	GDriveClientSecret string `mapstructure:"gdrive_client_secret"`
}

type CleanupConfig struct {
	// Schedule for the retention sweep. Empty disables it.
	Schedule string `mapstructure:"schedule"`
}

type EnginesConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kuzu     KuzuConfig     `mapstructure:"kuzu"`
}

type PostgresConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	Database      string        `mapstructure:"database"`
	SSLMode       string        `mapstructure:"ssl_mode"`
	PgDumpBinary  string        `mapstructure:"pg_dump_binary"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RetentionDays int           `mapstructure:"retention_days"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// RDBPath is where the server writes dump.rdb, reachable from this host.
	RDBPath       string        `mapstructure:"rdb_path"`
	SaveTimeout   time.Duration `mapstructure:"save_timeout"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	RetentionDays int           `mapstructure:"retention_days"`
}

type KuzuConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	DatabasePath  string `mapstructure:"database_path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

type BackupConfig struct {
	LocalPath string `mapstructure:"local_path"`
	// CompressionLevel is a gzip level: -2 (huffman only), -1 (default) or 0-9.
	CompressionLevel int            `mapstructure:"compression_level"`
	UploadTargets    []MirrorTarget `mapstructure:"upload_targets"`
}

type MirrorTarget struct {
	Type    string `mapstructure:"type"`
	Enabled bool   `mapstructure:"enabled"`

	// Google Drive
	CredentialsFile  string `mapstructure:"credentials_file"`
	FolderID         string `mapstructure:"folder_id"`
	RefreshToken     string `mapstructure:"refresh_token"`
	ClientSecretFile string `mapstructure:"client_secret_file"`

	// AWS S3 or compatible
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
	Endpoint  string `mapstructure:"endpoint"`
}

type NotificationsConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	BotToken      string `mapstructure:"bot_token"`
	ChatID        int64  `mapstructure:"chat_id"`
	NotifySuccess bool   `mapstructure:"notify_success"`
}

// JobConfig declares a job created on startup when no job with its id exists.
type JobConfig struct {
	ID            string   `mapstructure:"id"`
	Name          string   `mapstructure:"name"`
	Description   string   `mapstructure:"description"`
	Strategy      string   `mapstructure:"strategy"`
	Priority      string   `mapstructure:"priority"`
	Databases     []string `mapstructure:"databases"`
	Schedule      string   `mapstructure:"schedule"`
	RetentionDays int      `mapstructure:"retention_days"`
	Enabled       bool     `mapstructure:"enabled"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("CUSTOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "custos")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("state.jobs_file", "state/jobs.json")
	v.SetDefault("state.executions_dir", "state/executions")
	v.SetDefault("cleanup.schedule", "0 0 3 * * *")
	v.SetDefault("app.log_max_size_mb", 100)
	v.SetDefault("app.log_max_backups", 3)
	v.SetDefault("app.log_max_age_days", 28)
	v.SetDefault("backup.local_path", "backups")
	v.SetDefault("backup.compression_level", 9)

	v.SetDefault("engines.postgres.port", 5432)
	v.SetDefault("engines.postgres.ssl_mode", "prefer")
	v.SetDefault("engines.postgres.pg_dump_binary", "pg_dump")
	v.SetDefault("engines.postgres.timeout", "30m")
	v.SetDefault("engines.postgres.retention_days", 7)

	v.SetDefault("engines.redis.addr", "localhost:6379")
	v.SetDefault("engines.redis.save_timeout", "5m")
	v.SetDefault("engines.redis.poll_interval", "1s")
	v.SetDefault("engines.redis.retention_days", 7)

	v.SetDefault("engines.kuzu.retention_days", 7)
}

func (c *Config) Validate() error {
	if len(c.EnabledEngines()) == 0 {
		return fmt.Errorf("at least one engine must be enabled")
	}

	if c.State.JobsFile == "" {
		return fmt.Errorf("state.jobs_file is required")
	}
	if c.State.ExecutionsDir == "" {
		return fmt.Errorf("state.executions_dir is required")
	}
	if c.Backup.LocalPath == "" {
		return fmt.Errorf("backup.local_path is required")
	}
	if lvl := c.Backup.CompressionLevel; lvl < -2 || lvl > 9 {
		return fmt.Errorf("backup.compression_level must be between -2 and 9, got %d", lvl)
	}
	if c.App.LogMaxSizeMB < 0 || c.App.LogMaxBackups < 0 || c.App.LogMaxAgeDays < 0 {
		return fmt.Errorf("app: log rotation settings must be >= 0")
	}

	if pg := c.Engines.Postgres; pg.Enabled {
		if pg.Host == "" {
			return fmt.Errorf("engines.postgres: host is required")
		}
		if pg.Database == "" {
			return fmt.Errorf("engines.postgres: database is required")
		}
		if pg.RetentionDays < 0 {
			return fmt.Errorf("engines.postgres: retention_days must be >= 0")
		}
	}
	if rd := c.Engines.Redis; rd.Enabled {
		if rd.Addr == "" {
			return fmt.Errorf("engines.redis: addr is required")
		}
		if rd.RDBPath == "" {
			return fmt.Errorf("engines.redis: rdb_path is required")
		}
		if rd.RetentionDays < 0 {
			return fmt.Errorf("engines.redis: retention_days must be >= 0")
		}
	}
	if kz := c.Engines.Kuzu; kz.Enabled {
		if kz.DatabasePath == "" {
			return fmt.Errorf("engines.kuzu: database_path is required")
		}
		if kz.RetentionDays < 0 {
			return fmt.Errorf("engines.kuzu: retention_days must be >= 0")
		}
	}

	for i, target := range c.Backup.UploadTargets {
		if !target.Enabled {
			continue
		}
		switch target.Type {
		case "s3":
			if target.Bucket == "" {
				return fmt.Errorf("backup.upload_targets[%d]: bucket is required for s3", i)
			}
		case "gdrive":
			if target.FolderID == "" {
				return fmt.Errorf("backup.upload_targets[%d]: folder_id is required for gdrive", i)
			}
			if target.CredentialsFile == "" && (target.RefreshToken == "" || target.ClientSecretFile == "") {
				return fmt.Errorf("backup.upload_targets[%d]: gdrive needs credentials_file, or refresh_token with client_secret_file", i)
			}
		default:
			return fmt.Errorf("backup.upload_targets[%d]: unknown type %q", i, target.Type)
		}
	}

	if tg := c.Notifications.Telegram; tg.Enabled && (tg.BotToken == "" || tg.ChatID == 0) {
		return fmt.Errorf("notifications.telegram: bot_token and chat_id are required when enabled")
	}

	seen := make(map[string]bool, len(c.Jobs))
	for i, jc := range c.Jobs {
		job, err := jc.ToJob()
		if err != nil {
			return fmt.Errorf("jobs[%d]: %w", i, err)
		}
		if err := job.Validate(); err != nil {
			return fmt.Errorf("jobs[%d]: %w", i, err)
		}
		if seen[job.ID] {
			return fmt.Errorf("jobs[%d]: duplicate id %q", i, job.ID)
		}
		seen[job.ID] = true
	}

	return nil
}

// EnabledEngines returns enabled engine names in a fixed order.
func (c *Config) EnabledEngines() []string {
	var names []string
	if c.Engines.Postgres.Enabled {
		names = append(names, domain.EnginePostgres)
	}
	if c.Engines.Redis.Enabled {
		names = append(names, domain.EngineRedis)
	}
	if c.Engines.Kuzu.Enabled {
		names = append(names, domain.EngineKuzu)
	}
	return names
}

func (c *Config) GetEnabledUploadTargets() []MirrorTarget {
	var enabled []MirrorTarget
	for _, target := range c.Backup.UploadTargets {
		if target.Enabled {
			enabled = append(enabled, target)
		}
	}
	return enabled
}

// ToJob converts the declaration to a domain job. Strategy and priority
// default to full and medium.
func (jc JobConfig) ToJob() (domain.BackupJob, error) {
	strategy := domain.StrategyFull
	if jc.Strategy != "" {
		s, err := domain.ParseStrategy(jc.Strategy)
		if err != nil {
			return domain.BackupJob{}, err
		}
		strategy = s
	}

	priority := domain.PriorityMedium
	if jc.Priority != "" {
		p, err := domain.ParsePriority(jc.Priority)
		if err != nil {
			return domain.BackupJob{}, err
		}
		priority = p
	}

	return domain.BackupJob{
		ID:            jc.ID,
		Name:          jc.Name,
		Description:   jc.Description,
		Strategy:      strategy,
		Priority:      priority,
		Databases:     append([]string(nil), jc.Databases...),
		Schedule:      jc.Schedule,
		RetentionDays: jc.RetentionDays,
		Enabled:       jc.Enabled,
	}, nil
}
