package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

const envPrefix = "SHOPADMIN_"

// DBConfig Database configuration
type DBConfig struct {
	Type     string `yaml:"type"` // postgres or sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"` // database name, or file path for sqlite
	User     string `yaml:"user"`
	Passwd   string `yaml:"passwd"`
	MaxConn  int    `yaml:"max_conn"`
	IdleConn int    `yaml:"idle_conn"`
	Debug    bool   `yaml:"debug"`
}

// SysConfig System configuration
type SysConfig struct {
	Appid    string `yaml:"appid"`
	Location string `yaml:"location"`
	Workdir  string `yaml:"workdir"`
	Debug    bool   `yaml:"debug"`
}

// WebConfig Admin web server configuration
type WebConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// StorageConfig names the two asset roots. Deliverables live under the
// private root, preview images under the public root which is served as
// static content.
type StorageConfig struct {
	PrivateDir string `yaml:"private_dir"`
	PublicDir  string `yaml:"public_dir"`
}

// CatalogConfig controls how prices are displayed in listings
type CatalogConfig struct {
	Currency string `yaml:"currency"`
	Locale   string `yaml:"locale"`
}

// JobsConfig background reconciliation schedule
type JobsConfig struct {
	OrphanRetry        string `yaml:"orphan_retry"`
	OrphanSweep        string `yaml:"orphan_sweep"`
	OrphanGraceMinutes int    `yaml:"orphan_grace_minutes"`
	OrphanMaxAttempts  int    `yaml:"orphan_max_attempts"`
	Workers            int    `yaml:"workers"`
	AuditRetentionDays int    `yaml:"audit_retention_days"`
}

// LogConfig logging configuration
type LogConfig struct {
	Mode       string `yaml:"mode"`
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
}

type AppConfig struct {
	System   SysConfig     `yaml:"system"`
	Web      WebConfig     `yaml:"web"`
	Database DBConfig      `yaml:"database"`
	Storage  StorageConfig `yaml:"storage"`
	Catalog  CatalogConfig `yaml:"catalog"`
	Jobs     JobsConfig    `yaml:"jobs"`
	Logger   LogConfig     `yaml:"logger"`
}

// GetLogDir returns the log directory under the workdir
func (c *AppConfig) GetLogDir() string {
	return filepath.Join(c.System.Workdir, "logs")
}

// GetDataDir returns the data directory under the workdir
func (c *AppConfig) GetDataDir() string {
	return filepath.Join(c.System.Workdir, "data")
}

// InitDirs creates the working directories
func (c *AppConfig) InitDirs() error {
	for _, dir := range []string{
		c.GetLogDir(),
		c.GetDataDir(),
		c.Storage.PrivateDir,
		c.Storage.PublicDir,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// DefaultAppConfig returns the built-in configuration
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		System: SysConfig{
			Appid:    "ShopAdmin",
			Location: "UTC",
			Workdir:  "/var/shopadmin",
		},
		Web: WebConfig{
			Host:        "0.0.0.0",
			Port:        1816,
			MaxUploadMB: 64,
		},
		Database: DBConfig{
			Type:     "sqlite",
			Host:     "127.0.0.1",
			Port:     5432,
			Name:     "shopadmin.db",
			User:     "postgres",
			MaxConn:  100,
			IdleConn: 10,
		},
		Catalog: CatalogConfig{
			Currency: "USD",
			Locale:   "en-US",
		},
		Jobs: JobsConfig{
			OrphanRetry:        "@every 10m",
			OrphanSweep:        "@daily",
			OrphanGraceMinutes: 60,
			OrphanMaxAttempts:  5,
			Workers:            8,
			AuditRetentionDays: 365,
		},
		Logger: LogConfig{
			Mode:     "development",
			Filename: "shopadmin.log",
		},
	}
}

// LoadConfig reads the YAML file at cfile (when it exists), then applies
// SHOPADMIN_* environment overrides and fills derived paths.
func LoadConfig(cfile string) (*AppConfig, error) {
	cfg := DefaultAppConfig()
	if cfile != "" {
		data, err := os.ReadFile(cfile)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		case !os.IsNotExist(err):
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.applyDerived()
	return cfg, nil
}

func (c *AppConfig) applyEnv() {
	setEnvString(&c.System.Workdir, "SYSTEM_WORKDIR")
	setEnvString(&c.System.Location, "SYSTEM_LOCATION")
	setEnvBool(&c.System.Debug, "SYSTEM_DEBUG")

	setEnvString(&c.Web.Host, "WEB_HOST")
	setEnvInt(&c.Web.Port, "WEB_PORT")
	setEnvInt(&c.Web.MaxUploadMB, "WEB_MAX_UPLOAD_MB")

	setEnvString(&c.Database.Type, "DB_TYPE")
	setEnvString(&c.Database.Host, "DB_HOST")
	setEnvInt(&c.Database.Port, "DB_PORT")
	setEnvString(&c.Database.Name, "DB_NAME")
	setEnvString(&c.Database.User, "DB_USER")
	setEnvString(&c.Database.Passwd, "DB_PWD")
	setEnvBool(&c.Database.Debug, "DB_DEBUG")

	setEnvString(&c.Storage.PrivateDir, "STORAGE_PRIVATE_DIR")
	setEnvString(&c.Storage.PublicDir, "STORAGE_PUBLIC_DIR")

	setEnvString(&c.Catalog.Currency, "CATALOG_CURRENCY")
	setEnvString(&c.Catalog.Locale, "CATALOG_LOCALE")

	setEnvString(&c.Jobs.OrphanRetry, "JOBS_ORPHAN_RETRY")
	setEnvString(&c.Jobs.OrphanSweep, "JOBS_ORPHAN_SWEEP")
	setEnvInt(&c.Jobs.OrphanGraceMinutes, "JOBS_ORPHAN_GRACE_MINUTES")

	setEnvString(&c.Logger.Mode, "LOGGER_MODE")
	setEnvBool(&c.Logger.FileEnable, "LOGGER_FILE_ENABLE")
}

func (c *AppConfig) applyDerived() {
	if c.Storage.PrivateDir == "" {
		c.Storage.PrivateDir = filepath.Join(c.System.Workdir, "assets", "private")
	}
	if c.Storage.PublicDir == "" {
		c.Storage.PublicDir = filepath.Join(c.System.Workdir, "assets", "public")
	}
	if c.Database.Type == "sqlite" && !filepath.IsAbs(c.Database.Name) {
		c.Database.Name = filepath.Join(c.GetDataDir(), c.Database.Name)
	}
	if c.Logger.Filename != "" && !filepath.IsAbs(c.Logger.Filename) {
		c.Logger.Filename = filepath.Join(c.GetLogDir(), c.Logger.Filename)
	}
	c.Database.Type = strings.ToLower(strings.TrimSpace(c.Database.Type))
}

func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func setEnvString(p *string, name string) {
	if v, ok := lookupEnv(name); ok {
		*p = v
	}
}

func setEnvInt(p *int, name string) {
	if v, ok := lookupEnv(name); ok {
		if n, err := cast.ToIntE(v); err == nil {
			*p = n
		}
	}
}

func setEnvBool(p *bool, name string) {
	if v, ok := lookupEnv(name); ok {
		if b, err := cast.ToBoolE(v); err == nil {
			*p = b
		}
	}
}
