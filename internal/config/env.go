package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3100"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
	APIKey   string `envconfig:"API_KEY"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".sprintguild/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"sprintguild/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-northeast-1"`
	// Task records can live in SQLite for transactional reordering.
	TaskStore  string `envconfig:"TASK_STORE" default:"yaml"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:".sprintguild/tasks.db"`
}

type BlobEnv struct {
	BaseURL       string `envconfig:"BLOB_BASE_URL" default:"/blobs"`
	Prefix        string `envconfig:"BLOB_PREFIX" default:"images"`
	MaxImageBytes int64  `envconfig:"MAX_IMAGE_BYTES" default:"5242880"`
}

type GeneratorEnv struct {
	ClaudeEnabled bool          `envconfig:"CLAUDE_ENABLED" default:"false"`
	Model         string        `envconfig:"MODEL" default:"claude"`
	Timeout       time.Duration `envconfig:"GENERATOR_TIMEOUT" default:"5m"`
	WorkDir       string        `envconfig:"WORK_DIR" default:"."`
}

type TaggerEnv struct {
	RulesFile string `envconfig:"TAG_RULES_FILE"`
}

type VAPIDEnv struct {
	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	VAPIDContact    string `envconfig:"VAPID_CONTACT" default:"mailto:admin@example.com"`
}

type Env struct {
	BaseEnv
	StorageEnv
	BlobEnv
	GeneratorEnv
	TaggerEnv
	VAPIDEnv
}

const namespace = "SPRINTGUILD"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	if err := env.validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

func (e *Env) validate() error {
	switch e.StorageEnv.Type {
	case "local", "s3":
	default:
		return fmt.Errorf("unknown storage type %q", e.StorageEnv.Type)
	}
	if e.StorageEnv.Type == "s3" && e.S3Bucket == "" {
		return fmt.Errorf("%s_S3_BUCKET is required for s3 storage", namespace)
	}
	switch e.TaskStore {
	case "yaml", "sqlite":
	default:
		return fmt.Errorf("unknown task store %q", e.TaskStore)
	}
	if e.MaxImageBytes <= 0 {
		return fmt.Errorf("%s_MAX_IMAGE_BYTES must be positive", namespace)
	}
	return nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}

// PushEnabled reports whether both VAPID keys are configured.
func (e *VAPIDEnv) PushEnabled() bool {
	return e.VAPIDPublicKey != "" && e.VAPIDPrivateKey != ""
}
