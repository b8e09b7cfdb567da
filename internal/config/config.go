package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultPath = "./config/calsync.yaml"
	envPrefix   = "CALSYNC_"
)

type Application struct {
	// Source is the name of the calendar events are copied from.
	Source string `koanf:"source"`
	// Target is the name of the calendar kept as a mirror of Source.
	Target string `koanf:"target"`
	// Prefix tags every mirrored summary and marks target events as owned.
	Prefix string `koanf:"prefix"`
	// Filter is a regular expression; source events whose summary matches
	// are not mirrored. It must be set, possibly to the empty string.
	Filter      string   `koanf:"filter"`
	Description string   `koanf:"description"`
	Sync        Sync     `koanf:"sync"`
	Google      Google   `koanf:"google"`
	History     History  `koanf:"history"`
	Database    Database `koanf:"db"`
}

type Sync struct {
	Concurrency int           `koanf:"concurrency"`
	DryRun      bool          `koanf:"dryrun"`
	Schedule    string        `koanf:"schedule"`
	Timeout     time.Duration `koanf:"timeout"`
}

type Google struct {
	CredentialsFile string `koanf:"credentialsfile"`
	// CredentialsSecret is a Secret Manager secret version name holding the
	// OAuth client JSON. Takes precedence over CredentialsFile.
	CredentialsSecret string `koanf:"credentialssecret"`
	TokenFile         string `koanf:"tokenfile"`
	PageSize          int64  `koanf:"pagesize"`
	CallbackAddr      string `koanf:"callbackaddr"`
}

type History struct {
	Enabled bool `koanf:"enabled"`
}

type Database struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`
}

// ConfigurationError lists every missing or invalid setting.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

func defaults() Application {
	store := ".store"
	if home, err := os.UserHomeDir(); err == nil {
		store = filepath.Join(home, ".store")
	}
	return Application{
		Sync: Sync{
			Concurrency: 4,
			Schedule:    "*/15 * * * *",
			Timeout:     5 * time.Minute,
		},
		Google: Google{
			CredentialsFile: filepath.Join(store, "calsync", "credentials.json"),
			TokenFile:       filepath.Join(store, "calsync", "token.json"),
			PageSize:        250,
			CallbackAddr:    "127.0.0.1:8085",
		},
		Database: Database{
			Host:   "localhost",
			Port:   5432,
			User:   "calsync",
			Name:   "calsync",
			Schema: "calsync",
		},
	}
}

// Load reads configuration from defaults, the YAML file at path, CALSYNC_
// environment variables and finally overrides (command-line flags keyed by
// koanf path), each layer winning over the previous one. The result is
// validated for a sync run.
func Load(path string, overrides map[string]any) (Application, error) {
	app, filterSet, err := read(path, overrides)
	if err != nil {
		return Application{}, err
	}
	if err := app.validate(filterSet); err != nil {
		return Application{}, err
	}
	return app, nil
}

// LoadBase reads configuration like Load but skips the checks only a sync
// run needs, for commands that never touch the calendars' events.
func LoadBase(path string, overrides map[string]any) (Application, error) {
	app, _, err := read(path, overrides)
	return app, err
}

func read(path string, overrides map[string]any) (Application, bool, error) {
	// user collects what was supplied explicitly, so that validation can
	// tell an unset key from one set to its zero value.
	var user = koanf.New(".")

	if err := user.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, false, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err := user.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, envPrefix)), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, false, err
	}

	for key, value := range overrides {
		if err := user.Set(key, value); err != nil {
			return Application{}, false, fmt.Errorf("error applying flag %s: %w", key, err)
		}
	}

	var k = koanf.New(".")
	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, false, err
	}
	if err := k.Merge(user); err != nil {
		return Application{}, false, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, false, err
	}

	return app, user.Exists("filter"), nil
}

func (a Application) validate(filterSet bool) error {
	var problems []string
	if a.Source == "" {
		problems = append(problems, "missing source calendar name (source)")
	}
	if a.Target == "" {
		problems = append(problems, "missing target calendar name (target)")
	}
	if a.Prefix == "" {
		problems = append(problems, "missing event prefix (prefix)")
	}
	if !filterSet {
		problems = append(problems, "missing event filter (filter), set it to an empty string to mirror everything")
	} else if _, err := regexp.Compile(a.Filter); err != nil {
		problems = append(problems, fmt.Sprintf("invalid event filter %q: %v", a.Filter, err))
	}
	if a.Source != "" && a.Source == a.Target {
		problems = append(problems, "source and target must be different calendars")
	}
	if _, err := cron.ParseStandard(a.Sync.Schedule); err != nil {
		problems = append(problems, fmt.Sprintf("invalid sync.schedule %q: %v", a.Sync.Schedule, err))
	}
	if a.Sync.Concurrency < 1 {
		problems = append(problems, "sync.concurrency must be at least 1")
	}
	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}
