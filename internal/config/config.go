// Package config loads application settings from flags, the environment and
// an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/blonki/internal/blob"
	"github.com/conorfennell/blonki/internal/logging"
	"github.com/conorfennell/blonki/internal/srs"
	"github.com/conorfennell/blonki/internal/storage"
)

// EnvPrefix is stripped from environment variables; "__" separates sections,
// so BLONKI_LIBRARY__PATH sets library.path.
const EnvPrefix = "BLONKI_"

// Config is the full application configuration.
type Config struct {
	Log     logging.Config `koanf:"log"`
	Library storage.Config `koanf:"library"`
	SRS     srs.Settings   `koanf:"srs"`
	Export  Export         `koanf:"export"`
	Blob    blob.Config    `koanf:"blob"`
	Server  Server         `koanf:"server"`
}

// Export controls how archives are written.
type Export struct {
	Compress        bool   `koanf:"compress"`
	IncludeSettings bool   `koanf:"include_settings"`
	Dir             string `koanf:"dir"`
}

// Server configures the HTTP API.
type Server struct {
	Addr string `koanf:"addr" validate:"required,hostname_port"`
	// RateLimit is requests per minute per client; 0 disables limiting.
	RateLimit   int      `koanf:"rate_limit" validate:"min=0"`
	// CORSOrigins lists the browser origins allowed to call the API; empty
	// allows same-origin requests only.
	CORSOrigins []string `koanf:"cors_origins"`
	// RemoteImport allows POST /api/import?url= to fetch archives and clone
	// repositories.
	RemoteImport bool `koanf:"remote_import"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Log:     logging.Config{Level: "info", Format: "text"},
		Library: storage.Config{Backend: storage.BackendSQLite, Path: "blonki.db"},
		SRS:     srs.DefaultSettings(),
		Export:  Export{Dir: "."},
		Server:  Server{Addr: ":8080", RateLimit: 120},
	}
}

// flagKeys maps flag names registered by RegisterFlags onto config keys.
var flagKeys = map[string]string{
	"log-level":        "log.level",
	"log-format":       "log.format",
	"backend":          "library.backend",
	"db":               "library.path",
	"algorithm":        "srs.algorithm",
	"compress":         "export.compress",
	"include-settings": "export.include_settings",
	"addr":             "server.addr",
}

// RegisterFlags adds the configuration flags to fs, with defaults taken from
// Defaults.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("config", "", "path to a YAML config file")
	fs.String("log-level", d.Log.Level, "log level: debug, info, warn or error")
	fs.String("log-format", d.Log.Format, "log format: text or json")
	fs.String("backend", string(d.Library.Backend), "library backend: sqlite or turso")
	fs.String("db", d.Library.Path, "path to the SQLite library file")
	fs.String("algorithm", d.SRS.Algorithm, "scheduling algorithm: sm2, sm17 or custom")
	fs.Bool("compress", d.Export.Compress, "zstd-compress the collection inside exported archives")
	fs.Bool("include-settings", d.Export.IncludeSettings, "write collection settings into exported archives")
	fs.String("addr", d.Server.Addr, "HTTP listen address")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load merges, in increasing precedence, Defaults, the YAML file named by
// the --config flag (or BLONKI_CONFIG), environment variables and flags set
// on the command line. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	path := os.Getenv(EnvPrefix + "CONFIG")
	if fs != nil {
		if p, err := fs.GetString("config"); err == nil && p != "" {
			path = p
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		if s == "CONFIG" {
			return ""
		}
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if fs != nil {
		err := k.Load(posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		}), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg := Defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section of the configuration.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
