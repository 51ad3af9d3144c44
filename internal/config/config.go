// Package config loads the immutable run configuration: defaults, then an
// optional YAML file, then environment variables and flags through viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"oraback/internal/rman"
	"oraback/internal/storage"
)

// Config is built once at startup and passed by value.
type Config struct {
	// LogDir holds the per-invocation run logs.
	LogDir string `yaml:"log_dir"`
	// TempBackupDir holds one {timestamp}_run directory per backup attempt.
	TempBackupDir string `yaml:"temp_backup_dir"`
	// RestoreSourceDir is scanned for run directories on restore.
	RestoreSourceDir string `yaml:"restore_source_dir"`
	OracleSID        string `yaml:"oracle_sid,omitempty"`

	Engine  EngineConfig  `yaml:"engine"`
	Storage StorageConfig `yaml:"storage"`
	Upload  UploadConfig  `yaml:"upload,omitempty"`
}

type EngineConfig struct {
	Binary        string `yaml:"binary,omitempty"`
	ConnectString string `yaml:"connect_string"`
	// Container, when set, runs the engine with docker exec inside it.
	Container string `yaml:"container,omitempty"`
}

type StorageConfig struct {
	Provider          string  `yaml:"provider,omitempty"`
	Endpoint          string  `yaml:"endpoint,omitempty"`
	AccessKey         string  `yaml:"access_key,omitempty"`
	SecretKey         string  `yaml:"secret_key,omitempty"`
	Bucket            string  `yaml:"bucket"`
	Region            string  `yaml:"region,omitempty"`
	UseSSL            bool    `yaml:"use_ssl"`
	BackupPrefix      string  `yaml:"backup_prefix,omitempty"`
	LogPrefix         string  `yaml:"log_prefix,omitempty"`
	CapacityThreshold float64 `yaml:"capacity_threshold,omitempty"`
}

type UploadConfig struct {
	// Concurrency bounds parallel artifact uploads.
	Concurrency int `yaml:"concurrency,omitempty"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{Binary: "rman"},
		Storage: StorageConfig{
			Provider:          storage.ProviderS3,
			Region:            "us-east-1",
			UseSSL:            true,
			BackupPrefix:      "oracle_backup/",
			LogPrefix:         "oracle_logs/",
			CapacityThreshold: 95,
		},
		Upload: UploadConfig{Concurrency: 1},
	}
}

type binding struct {
	key  string
	envs []string
	set  func(c *Config, v *viper.Viper, key string)
}

func setString(field func(*Config) *string) func(*Config, *viper.Viper, string) {
	return func(c *Config, v *viper.Viper, key string) { *field(c) = v.GetString(key) }
}

var bindings = []binding{
	{"log_dir", []string{"LOG_DIR"}, setString(func(c *Config) *string { return &c.LogDir })},
	{"temp_backup_dir", []string{"TEMP_BACKUP_DIR"}, setString(func(c *Config) *string { return &c.TempBackupDir })},
	{"restore_source_dir", []string{"RESTORE_SOURCE_DIR"}, setString(func(c *Config) *string { return &c.RestoreSourceDir })},
	{"oracle_sid", []string{"ORACLE_SID"}, setString(func(c *Config) *string { return &c.OracleSID })},
	{"engine.binary", []string{"RMAN_BINARY"}, setString(func(c *Config) *string { return &c.Engine.Binary })},
	{"engine.connect_string", []string{"RMAN_TARGET_CONNECT_STRING"}, setString(func(c *Config) *string { return &c.Engine.ConnectString })},
	{"engine.container", []string{"RMAN_CONTAINER"}, setString(func(c *Config) *string { return &c.Engine.Container })},
	{"storage.provider", []string{"STORAGE_PROVIDER"}, setString(func(c *Config) *string { return &c.Storage.Provider })},
	{"storage.endpoint", []string{"S3_ENDPOINT", "MINIO_ENDPOINT"}, setString(func(c *Config) *string { return &c.Storage.Endpoint })},
	{"storage.access_key", []string{"AWS_ACCESS_KEY_ID", "MINIO_ACCESS_KEY"}, setString(func(c *Config) *string { return &c.Storage.AccessKey })},
	{"storage.secret_key", []string{"AWS_SECRET_ACCESS_KEY", "MINIO_SECRET_KEY"}, setString(func(c *Config) *string { return &c.Storage.SecretKey })},
	{"storage.bucket", []string{"S3_BUCKET_NAME", "MINIO_BUCKET"}, setString(func(c *Config) *string { return &c.Storage.Bucket })},
	{"storage.region", []string{"AWS_REGION"}, setString(func(c *Config) *string { return &c.Storage.Region })},
	{"storage.use_ssl", []string{"S3_SSL", "MINIO_SSL"}, func(c *Config, v *viper.Viper, key string) { c.Storage.UseSSL = v.GetBool(key) }},
	{"storage.backup_prefix", []string{"S3_BACKUP_PREFIX"}, setString(func(c *Config) *string { return &c.Storage.BackupPrefix })},
	{"storage.log_prefix", []string{"S3_LOG_PREFIX"}, setString(func(c *Config) *string { return &c.Storage.LogPrefix })},
	{"storage.capacity_threshold", []string{"MINIO_CAPACITY_THRESHOLD"}, func(c *Config, v *viper.Viper, key string) { c.Storage.CapacityThreshold = v.GetFloat64(key) }},
	{"upload.concurrency", []string{"UPLOAD_CONCURRENCY"}, func(c *Config, v *viper.Viper, key string) { c.Upload.Concurrency = v.GetInt(key) }},
}

// BindEnv registers the environment variable names for every key on v.
func BindEnv(v *viper.Viper) error {
	for _, b := range bindings {
		args := append([]string{b.key}, b.envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", b.key, err)
		}
	}
	return nil
}

// Load builds the configuration. path may be empty; v may be nil.
func Load(path string, v *viper.Viper) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if v != nil {
		if err := BindEnv(v); err != nil {
			return Config{}, err
		}
		for _, b := range bindings {
			if v.IsSet(b.key) {
				b.set(&cfg, v, b.key)
			}
		}
	}

	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	for _, p := range []*string{&c.LogDir, &c.TempBackupDir, &c.RestoreSourceDir} {
		if *p != "" {
			*p = filepath.Clean(*p)
		}
	}
	c.Storage.Provider = strings.ToLower(c.Storage.Provider)
	if c.Engine.Binary == "" {
		c.Engine.Binary = "rman"
	}
	if c.Upload.Concurrency < 1 {
		c.Upload.Concurrency = 1
	}
}

// ValidateStorage checks the settings needed to reach the object store.
func (c Config) ValidateStorage() error {
	var errs []error
	switch c.Storage.Provider {
	case storage.ProviderS3:
	case storage.ProviderMinio:
		if c.Storage.Endpoint == "" {
			errs = append(errs, errors.New("storage.endpoint is required for minio (set MINIO_ENDPOINT)"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.provider %q is invalid (must be 's3' or 'minio')", c.Storage.Provider))
	}
	if c.Storage.Bucket == "" {
		errs = append(errs, errors.New("storage.bucket is required (set S3_BUCKET_NAME)"))
	}
	return errors.Join(errs...)
}

// ValidateBackup checks everything a backup run needs.
func (c Config) ValidateBackup() error {
	var errs []error
	if c.LogDir == "" {
		errs = append(errs, errors.New("log_dir is required (set LOG_DIR)"))
	}
	if c.TempBackupDir == "" {
		errs = append(errs, errors.New("temp_backup_dir is required (set TEMP_BACKUP_DIR)"))
	}
	if c.Engine.ConnectString == "" {
		errs = append(errs, errors.New("engine.connect_string is required (set RMAN_TARGET_CONNECT_STRING)"))
	}
	if err := c.ValidateStorage(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateRestore checks everything a restore run needs.
func (c Config) ValidateRestore() error {
	var errs []error
	if c.LogDir == "" {
		errs = append(errs, errors.New("log_dir is required (set LOG_DIR)"))
	}
	if c.RestoreSourceDir == "" {
		errs = append(errs, errors.New("restore_source_dir is required (set RESTORE_SOURCE_DIR)"))
	}
	if c.Engine.ConnectString == "" {
		errs = append(errs, errors.New("engine.connect_string is required (set RMAN_TARGET_CONNECT_STRING)"))
	}
	return errors.Join(errs...)
}

// StoreConfig converts to the storage package's view.
func (c Config) StoreConfig() storage.Config {
	return storage.Config{
		Provider:          c.Storage.Provider,
		Endpoint:          c.Storage.Endpoint,
		AccessKey:         c.Storage.AccessKey,
		SecretKey:         c.Storage.SecretKey,
		Bucket:            c.Storage.Bucket,
		Region:            c.Storage.Region,
		UseSSL:            c.Storage.UseSSL,
		CapacityThreshold: c.Storage.CapacityThreshold,
	}
}

// EngineOptions returns the engine options. scriptDir is where CMDFILE
// scripts are written for this operation.
func (c Config) EngineOptions(scriptDir string) rman.Options {
	return rman.Options{
		Binary:        c.Engine.Binary,
		ConnectString: c.Engine.ConnectString,
		ScriptDir:     scriptDir,
		OracleSID:     c.OracleSID,
	}
}
