package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/plugincfg-merge/internal/fetch"
	"github.com/John-Robertt/plugincfg-merge/internal/merge"
	"github.com/John-Robertt/plugincfg-merge/internal/model"
	"github.com/John-Robertt/plugincfg-merge/internal/plugincfg"
)

// EnvPrefix namespaces the environment variables, e.g. PLUGINMERGE_MATCH_APPNAME.
const EnvPrefix = "PLUGINMERGE"

// Settings are the run settings. Sources apply in increasing precedence:
// Defaults, the settings file, the environment, then command-line flags
// (applied by the caller).
type Settings struct {
	Debug            bool `yaml:"debug" envconfig:"DEBUG"`
	SortVhostGroup   bool `yaml:"sort_vhost_group" envconfig:"SORT_VHOST_GROUP"`
	MatchURIAppVhost bool `yaml:"match_uri_app_vhost" envconfig:"MATCH_URI_APP_VHOST"`
	MatchAppName     bool `yaml:"match_app_name" envconfig:"MATCH_APPNAME"`
	Precedence       bool `yaml:"precedence" envconfig:"PRECEDENCE"`

	FetchTimeout  time.Duration `yaml:"fetch_timeout" envconfig:"FETCH_TIMEOUT"`
	MaxInputBytes int64         `yaml:"max_input_bytes" envconfig:"MAX_INPUT_BYTES"`
	MaxParallel   int           `yaml:"max_parallel" envconfig:"MAX_PARALLEL"`

	// Listen is the serve mode address.
	Listen string `yaml:"listen" envconfig:"LISTEN"`
}

func Defaults() Settings {
	return Settings{
		FetchTimeout:  15 * time.Second,
		MaxInputBytes: 32 * 1024 * 1024,
		MaxParallel:   4,
		Listen:        ":8080",
	}
}

type ConfigError struct {
	AppError model.AppError
	Cause    error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// Load layers the settings file at path (optional, local or http(s)) and
// the environment over Defaults.
func Load(ctx context.Context, path string) (Settings, error) {
	s := Defaults()
	if path != "" {
		raw, err := fetch.ReadWithOptions(ctx, fetch.KindSettings, path, fetch.Options{})
		if err != nil {
			return Settings{}, err
		}
		if err := yamlDecodeStrict(raw, &s); err != nil {
			return Settings{}, &ConfigError{
				AppError: model.AppError{
					Code:    "CONFIG_PARSE_ERROR",
					Message: "settings YAML could not be parsed",
					Stage:   model.StageLoadConfig,
					URL:     path,
				},
				Cause: err,
			}
		}
	}
	if err := envconfig.Process(EnvPrefix, &s); err != nil {
		return Settings{}, &ConfigError{
			AppError: model.AppError{
				Code:    "CONFIG_ENV_ERROR",
				Message: "invalid " + EnvPrefix + "_* environment variable",
				Stage:   model.StageLoadConfig,
			},
			Cause: err,
		}
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) Validate() error {
	switch {
	case s.FetchTimeout < 0:
		return invalid("fetch_timeout must not be negative")
	case s.MaxInputBytes < 0:
		return invalid("max_input_bytes must not be negative")
	case s.MaxParallel < 0:
		return invalid("max_parallel must not be negative")
	}
	return nil
}

func invalid(msg string) error {
	return &ConfigError{
		AppError: model.AppError{
			Code:    "CONFIG_VALIDATE_ERROR",
			Message: msg,
			Stage:   model.StageLoadConfig,
		},
	}
}

func (s Settings) MergeOptions(log *slog.Logger) merge.Options {
	return merge.Options{
		SortVhostGroup:   s.SortVhostGroup,
		MatchURIAppVhost: s.MatchURIAppVhost,
		MatchAppName:     s.MatchAppName,
		Precedence:       s.Precedence,
		Logger:           log,
	}
}

func (s Settings) LoadOptions(log *slog.Logger) plugincfg.LoadOptions {
	return plugincfg.LoadOptions{
		Fetch:       fetch.Options{Timeout: s.FetchTimeout, MaxBytes: s.MaxInputBytes},
		Logger:      log,
		MaxParallel: s.MaxParallel,
	}
}

func yamlDecodeStrict(content []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	// Reject multi-document YAML to keep behavior deterministic.
	var extra any
	if err := dec.Decode(&extra); err == nil {
		return errors.New("multiple YAML documents are not allowed")
	} else if !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
