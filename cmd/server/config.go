package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/capabusiness/verification/internal/auth"
	"github.com/capabusiness/verification/internal/identity/firebase"
	"github.com/capabusiness/verification/internal/krypto"
	"github.com/capabusiness/verification/internal/logging"
	"github.com/capabusiness/verification/internal/web"
)

const (
	identityDriverMemory   = "memory"
	identityDriverFirebase = "firebase"
)

// httpConfig is the configuration for the HTTP server.
type httpConfig struct {
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
	cookieKeys      []krypto.Key
	viewDir         string
	server          web.ServerConfig
}

type logConfig struct {
	format logging.Format
	level  slog.Level
}

type identityConfig struct {
	driver           string
	timeout          time.Duration
	firebase         firebase.Settings
	memoryAutoVerify bool
}

// config is the configuration for the server command.
type config struct {
	http        httpConfig
	metricsAddr string
	log         logConfig
	auth        auth.ServiceConfig
	identity    identityConfig
}

// defaultConfig returns a config with sane default values.
func defaultConfig() config {
	return config{
		http: httpConfig{
			addr:            ":8888",
			readTimeout:     time.Second * 5,
			writeTimeout:    time.Second * 10,
			idleTimeout:     time.Second * 120,
			shutdownTimeout: time.Second * 15,
			server: web.ServerConfig{
				SecureCookie: true,
			},
		},
		log: logConfig{
			format: logging.FormatText,
			level:  slog.LevelInfo,
		},
		auth: auth.ServiceConfig{
			WorkerTimeout: time.Second * 10,
		},
		identity: identityConfig{
			driver:  identityDriverMemory,
			timeout: time.Second * 10,
			firebase: firebase.Settings{
				APIURL: must(url.Parse(firebase.DefaultAPIURL)),
			},
		},
	}
}

// requiredEnv lists the environment variables without a default.
var requiredEnv = []string{
	"HTTP_COOKIE_KEYS",
	"HTTP_CSRF_KEY",
}

// envMap maps environment variable names to fields in the config struct.
var envMap = map[string]func(v string, c *config) error{
	"HTTP_ADDR": func(v string, c *config) error {
		c.http.addr = v
		return nil
	},
	"HTTP_READ_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.readTimeout, 0, math.MaxInt64)
	},
	"HTTP_WRITE_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.writeTimeout, 0, math.MaxInt64)
	},
	"HTTP_IDLE_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.idleTimeout, 0, math.MaxInt64)
	},
	"HTTP_SHUTDOWN_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.shutdownTimeout, 0, math.MaxInt64)
	},
	"HTTP_COOKIE_KEYS": func(v string, c *config) error {
		keys, err := krypto.ParseKeys(v)
		if err != nil {
			return err
		}
		c.http.cookieKeys = keys
		return nil
	},
	"HTTP_CSRF_KEY": func(v string, c *config) error {
		key, err := krypto.ParseKey(v)
		if err != nil {
			return err
		}
		c.http.server.CSRFKey = key
		return nil
	},
	"HTTP_SECURE_COOKIE": func(v string, c *config) error {
		return confBool(v, &c.http.server.SecureCookie)
	},
	"HTTP_VIEW_DIR": func(v string, c *config) error {
		c.http.viewDir = v
		return nil
	},
	"METRICS_ADDR": func(v string, c *config) error {
		c.metricsAddr = v
		return nil
	},
	"LOG_FORMAT": func(v string, c *config) error {
		format, err := logging.ParseFormat(v)
		if err != nil {
			return err
		}
		c.log.format = format
		return nil
	},
	"LOG_LEVEL": func(v string, c *config) error {
		level, err := logging.ParseLevel(v)
		if err != nil {
			return err
		}
		c.log.level = level
		return nil
	},
	"AUTH_WORKER_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.auth.WorkerTimeout, time.Millisecond, math.MaxInt64)
	},
	"IDENTITY_DRIVER": func(v string, c *config) error {
		switch v {
		case identityDriverMemory, identityDriverFirebase:
			c.identity.driver = v
			return nil
		default:
			return fmt.Errorf("unknown driver %q, want %q or %q", v, identityDriverMemory, identityDriverFirebase)
		}
	},
	"IDENTITY_API_URL": func(v string, c *config) error {
		u, err := url.Parse(v)
		if err != nil {
			return err
		}
		if !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("url %q is not absolute", v)
		}
		c.identity.firebase.APIURL = u
		return nil
	},
	"IDENTITY_API_KEY": func(v string, c *config) error {
		c.identity.firebase.APIKey = krypto.NewSecret(v)
		return nil
	},
	"IDENTITY_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.identity.timeout, 0, math.MaxInt64)
	},
	"IDENTITY_MEMORY_AUTOVERIFY": func(v string, c *config) error {
		return confBool(v, &c.identity.memoryAutoVerify)
	},
}

// configFromEnv returns a config with values from the environment. It falls
// back to default values for any missing environment variables.
//
// It does a best effort to validate provided values, so that mistakes are
// caught ASAP. All problems are reported at once. However, there is no
// guarantee that the returned config is valid and will work.
func configFromEnv() (config, error) {
	c := defaultConfig()

	var errs []error

	for _, key := range requiredEnv {
		if _, ok := os.LookupEnv(key); !ok {
			errs = append(errs, fmt.Errorf("missing required env variable %s", key))
		}
	}

	for key, mf := range envMap {
		if val, ok := os.LookupEnv(key); ok {
			if err := mf(val, &c); err != nil {
				errs = append(errs, fmt.Errorf("invalid env variable %s: %w", key, err))
			}
		}
	}

	if c.identity.driver == identityDriverFirebase && c.identity.firebase.APIKey.IsZero() {
		errs = append(errs, fmt.Errorf("env variable IDENTITY_API_KEY is required when IDENTITY_DRIVER is %s", identityDriverFirebase))
	}

	return c, errors.Join(errs...)
}

// confDuration attempts to parse v into tgt and checks if the result is in
// the provided range (inclusive).
func confDuration(v string, tgt *time.Duration, min, max time.Duration) error {
	dur, err := time.ParseDuration(v)
	if err != nil {
		return err
	}

	if dur < min || dur > max {
		return fmt.Errorf("duration %s not in range [%s, %s] (inclusive)", dur, min, max)
	}

	*tgt = dur

	return nil
}

func confBool(v string, tgt *bool) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}

	*tgt = b
	return nil
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
