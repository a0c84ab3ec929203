package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/pkg/errors"
)

const envPrefix = "WCL_"

// Config is the full service configuration. Values come from defaults, then
// an optional yaml file, then WCL_* environment variables, last one wins.
type Config struct {
	BindAddr string `koanf:"bind_addr"`

	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`

	RecaptchaSecret string `koanf:"recaptcha_secret"`

	CacheDir       string        `koanf:"cache_dir"`
	ResultCacheTTL time.Duration `koanf:"result_cache_ttl"`

	APIConcurrency int `koanf:"api_concurrency"`

	JobTTL time.Duration `koanf:"job_ttl"`
}

func Load(path string) (*Config, error) {
	godotenv.Load(".env")

	k := koanf.New(".")

	err := k.Load(confmap.Provider(map[string]interface{}{
		"bind_addr":        "127.0.0.1:5555",
		"cache_dir":        "./cached",
		"result_cache_ttl": 10 * time.Minute,
		"api_concurrency":  4,
		"job_ttl":          30 * time.Minute,
	}, "."), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			err = k.Load(file.Provider(path), yaml.Parser())
			if err != nil {
				return nil, errors.WithStack(err)
			}
		}
	}

	err = k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var cfg Config
	err = k.Unmarshal("", &cfg)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &cfg, nil
}
