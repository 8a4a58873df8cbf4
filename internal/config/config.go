package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/manicko/mko-birth-reminder-bot/assets"
)

const (
	ConfigFile  = "config.yaml"
	SecretsFile = "secrets.yaml"
	appDirName  = "mko-birth-reminder-bot"
)

// Config is the full application configuration. It is assembled from the
// embedded defaults, the user config file, the secrets file and the environment.
type Config struct {
	Database Database `yaml:"DATABASE"`
	CSV      CSV      `yaml:"CSV"`
	Telegram Telegram `yaml:"TELEGRAM"`
	Reminder Reminder `yaml:"REMINDER"`
	Logging  Logging  `yaml:"LOGGING"`
	Messages Messages `yaml:"MESSAGES"`
	HTTPAddr string   `yaml:"HTTP_ADDR"` // healthz; empty disables

	// Home is the settings directory; relative paths are resolved against it.
	Home string `yaml:"-"`
}

type Database struct {
	Path              string `yaml:"path" validate:"required"`
	File              string `yaml:"file" validate:"required"`
	DefaultNoticeDays []int  `yaml:"default_notice_days" validate:"required,dive,min=0,max=366"`
	RecordsLimit      int    `yaml:"records_limit" validate:"min=1"`
	UsersLimit        int    `yaml:"users_limit" validate:"min=0"` // 0 = unlimited
}

// DSN returns the database file path.
func (d Database) DSN() string { return filepath.Join(d.Path, d.File) }

type CSV struct {
	Import CSVImport `yaml:"import"`
	Export CSVExport `yaml:"export"`
}

type CSVImport struct {
	Path            string `yaml:"path" validate:"required"`
	DeleteAfterDays int    `yaml:"delete_after_days" validate:"min=0"`
	Separator       string `yaml:"separator" validate:"required,len=1"`
	Encoding        string `yaml:"encoding" validate:"required"`
	SkipHeader      bool   `yaml:"skip_header"`
}

type CSVExport struct {
	Path       string `yaml:"path" validate:"required"`
	Separator  string `yaml:"separator" validate:"required,len=1"`
	Encoding   string `yaml:"encoding" validate:"required"`
	Header     bool   `yaml:"header"`
	IncludeID  bool   `yaml:"include_id"`
	DateFormat string `yaml:"date_format"` // Go layout; empty keeps YYYY-MM-DD
}

type Telegram struct {
	BotToken    string              `yaml:"bot_token" validate:"required"`
	Debug       bool                `yaml:"debug"`
	PollTimeout int                 `yaml:"poll_timeout" validate:"min=1"`
	SessionTTL  time.Duration       `yaml:"session_ttl" validate:"gte=0"` // 0 = sessions never expire
	Throttle    map[string]Throttle `yaml:"throttle" validate:"dive"`
	Menu        Menus               `yaml:"menu"`
}

// Throttle allows Requests events per Period.
type Throttle struct {
	Requests int           `yaml:"requests" validate:"min=1"`
	Period   time.Duration `yaml:"period" validate:"gt=0"`
}

type Menus struct {
	Start     Menu `yaml:"start" validate:"required"`
	AddRecord Menu `yaml:"add_record" validate:"required"`
}

type Reminder struct {
	Timezone     string        `yaml:"timezone" validate:"required,timezone"`
	Trigger      Trigger       `yaml:"trigger"`
	StateFile    string        `yaml:"state_file" validate:"required"`
	DelayMin     time.Duration `yaml:"delay_min" validate:"gte=0"`
	DelayMax     time.Duration `yaml:"delay_max" validate:"gtefield=DelayMin"`
	UpcomingDays int           `yaml:"upcoming_days" validate:"min=1,max=366"`
	Columns      []string      `yaml:"columns" validate:"required,dive,oneof=id company last_name first_name position gift_category birth_date notice_before_days"`
}

// Location loads the reminder timezone.
func (r Reminder) Location() (*time.Location, error) {
	return time.LoadLocation(r.Timezone)
}

// Trigger holds cron fields in the usual five-field order.
type Trigger struct {
	Minute    string `yaml:"minute" validate:"required"`
	Hour      string `yaml:"hour" validate:"required"`
	Day       string `yaml:"day" validate:"required"`
	Month     string `yaml:"month" validate:"required"`
	DayOfWeek string `yaml:"day_of_week" validate:"required"`
}

// Spec renders the trigger as a standard cron expression.
func (t Trigger) Spec() string {
	return fmt.Sprintf("%s %s %s %s %s", t.Minute, t.Hour, t.Day, t.Month, t.DayOfWeek)
}

type Logging struct {
	Level       string   `yaml:"level" validate:"oneof=debug info warn error"`
	Encoding    string   `yaml:"encoding" validate:"oneof=json console"`
	OutputPaths []string `yaml:"output_paths" validate:"required"`
}

type Messages struct {
	Help       string `yaml:"help" validate:"required"`
	HelpImport string `yaml:"help_import" validate:"required"`
}

// envOverrides are read from the process environment and win over files.
type envOverrides struct {
	Home     string `envconfig:"BIRTHDAY_BOT_HOME"`
	BotToken string `envconfig:"BOT_TOKEN"`
	LogLevel string `envconfig:"LOG_LEVEL"`
	DBPath   string `envconfig:"DB_PATH"`
	Timezone string `envconfig:"REMINDER_TZ"`
	HTTPAddr string `envconfig:"HTTP_ADDR"`
}

func (e envOverrides) apply(cfg *Config) {
	if e.BotToken != "" {
		cfg.Telegram.BotToken = e.BotToken
	}
	if e.LogLevel != "" {
		cfg.Logging.Level = e.LogLevel
	}
	if e.DBPath != "" {
		cfg.Database.Path, cfg.Database.File = filepath.Split(e.DBPath)
		if cfg.Database.Path == "" {
			cfg.Database.Path = "."
		}
	}
	if e.Timezone != "" {
		cfg.Reminder.Timezone = e.Timezone
	}
	if e.HTTPAddr != "" {
		cfg.HTTPAddr = e.HTTPAddr
	}
}

var validate = validator.New()

// Load builds the configuration for the settings directory home. An empty
// home falls back to BIRTHDAY_BOT_HOME and then to the user config dir.
func Load(home string) (Config, error) {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	if home == "" {
		home = env.Home
	}
	if home == "" {
		var err error
		if home, err = DefaultHome(); err != nil {
			return Config{}, err
		}
	}
	home, err := filepath.Abs(home)
	if err != nil {
		return Config{}, err
	}

	cfg, err := Parse(assets.DefaultConfig)
	if err != nil {
		return Config{}, fmt.Errorf("default config: %w", err)
	}
	for _, name := range []string{ConfigFile, SecretsFile} {
		if err := mergeFile(&cfg, filepath.Join(home, name)); err != nil {
			return Config{}, err
		}
	}
	env.apply(&cfg)
	cfg.Home = home

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.resolvePaths(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes a single YAML layer into a fresh Config.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Merge decodes data over cfg. Mappings merge key by key, sequences and
// scalars present in data replace the current values.
func Merge(cfg *Config, data []byte) error {
	return yaml.Unmarshal(data, cfg)
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := Merge(cfg, data); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Validate checks struct tags and menu consistency.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, kind := range []string{"text", "callback"} {
		if _, ok := cfg.Telegram.Throttle[kind]; !ok {
			return fmt.Errorf("invalid config: TELEGRAM.throttle.%s is missing", kind)
		}
	}
	return nil
}

// DefaultHome is the per-user settings directory.
func DefaultHome() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config dir: %w", err)
	}
	return filepath.Join(dir, appDirName), nil
}

// resolvePaths makes every configured path absolute and creates the
// directories the application writes into.
func (c *Config) resolvePaths() error {
	dirs := []*string{&c.Database.Path, &c.CSV.Import.Path, &c.CSV.Export.Path}
	for _, p := range dirs {
		*p = c.abs(*p)
		if err := os.MkdirAll(*p, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", *p, err)
		}
	}

	files := []*string{&c.Reminder.StateFile}
	for i := range c.Logging.OutputPaths {
		switch c.Logging.OutputPaths[i] {
		case "stdout", "stderr":
			continue
		}
		files = append(files, &c.Logging.OutputPaths[i])
	}
	for _, p := range files {
		*p = c.abs(*p)
		if err := os.MkdirAll(filepath.Dir(*p), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Dir(*p), err)
		}
	}
	return nil
}

func (c *Config) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.Home, p)
}
