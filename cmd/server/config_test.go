package main

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capabusiness/verification/internal/krypto"
	"github.com/capabusiness/verification/internal/logging"
)

func requiredEnvForTest() map[string]string {
	return map[string]string{
		"HTTP_COOKIE_KEYS": "568554094ec040ab8a6b3e6d7cc138b0dc855f39ba1aeb2ffc903f7260b3a452,d503685b5e0848dcd1026711a5d92e8a087dfaffa489fb563e0de73db2f2476c",
		"HTTP_CSRF_KEY":    "dfab77e26917c6e37a173690443a0016808ef7b24e32424d45cd83454198a6ec",
	}
}

func newConfig(mf func(*config)) config {
	c := defaultConfig()
	c.http.cookieKeys = []krypto.Key{
		must(krypto.ParseKey("568554094ec040ab8a6b3e6d7cc138b0dc855f39ba1aeb2ffc903f7260b3a452")),
		must(krypto.ParseKey("d503685b5e0848dcd1026711a5d92e8a087dfaffa489fb563e0de73db2f2476c")),
	}
	c.http.server.CSRFKey = must(krypto.ParseKey("dfab77e26917c6e37a173690443a0016808ef7b24e32424d45cd83454198a6ec"))

	if mf != nil {
		mf(&c)
	}
	return c
}

func TestConfigFromEnv(t *testing.T) {
	t.Run("ok, uses defaults for non-required env variables", func(t *testing.T) {
		// set the required env variables.
		for key, val := range requiredEnvForTest() {
			envForTest(t, key, val)
		}

		got, err := configFromEnv()
		require.NoError(t, err)
		assert.Equal(t, newConfig(nil), got)
	})

	valid := map[string]struct {
		key string
		val string
		mf  func(*config) // modify default config to create wanted config.
	}{
		"ok, non-default HTTP_ADDR": {
			key: "HTTP_ADDR", val: "localhost:8080", mf: func(c *config) { c.http.addr = "localhost:8080" },
		},
		"ok, non-default HTTP_READ_TIMEOUT": {
			key: "HTTP_READ_TIMEOUT", val: "101ms", mf: func(c *config) { c.http.readTimeout = 101 * time.Millisecond },
		},
		"ok, non-default HTTP_WRITE_TIMEOUT": {
			key: "HTTP_WRITE_TIMEOUT", val: "202ms", mf: func(c *config) { c.http.writeTimeout = 202 * time.Millisecond },
		},
		"ok, non-default HTTP_IDLE_TIMEOUT": {
			key: "HTTP_IDLE_TIMEOUT", val: "303ms", mf: func(c *config) { c.http.idleTimeout = 303 * time.Millisecond },
		},
		"ok, non-default HTTP_SHUTDOWN_TIMEOUT": {
			key: "HTTP_SHUTDOWN_TIMEOUT", val: "404ms", mf: func(c *config) { c.http.shutdownTimeout = 404 * time.Millisecond },
		},
		"ok, other HTTP_COOKIE_KEYS": {
			key: "HTTP_COOKIE_KEYS",
			val: "04017690e77c6a19671178e1950c7519389b58f6ffb8dcf53b2acfcaca398778,ddadbbe8b69c757875b80b8522a40da8ed882a1a368160247ef769acad61f88a",
			mf: func(c *config) {
				c.http.cookieKeys = []krypto.Key{
					must(krypto.ParseKey("04017690e77c6a19671178e1950c7519389b58f6ffb8dcf53b2acfcaca398778")),
					must(krypto.ParseKey("ddadbbe8b69c757875b80b8522a40da8ed882a1a368160247ef769acad61f88a")),
				}
			},
		},
		"ok, non-default HTTP_SECURE_COOKIE": {
			key: "HTTP_SECURE_COOKIE", val: "false", mf: func(c *config) { c.http.server.SecureCookie = false },
		},
		"ok, other HTTP_CSRF_KEY": {
			key: "HTTP_CSRF_KEY",
			val: "218dbd640d2ae9bd7a81e45f1ad963ecea3027fea21b9c3b93ca3ad69915f733",
			mf: func(c *config) {
				c.http.server.CSRFKey = must(krypto.ParseKey("218dbd640d2ae9bd7a81e45f1ad963ecea3027fea21b9c3b93ca3ad69915f733"))
			},
		},
		"ok, non-default HTTP_VIEW_DIR": {
			key: "HTTP_VIEW_DIR", val: "./views", mf: func(c *config) { c.http.viewDir = "./views" },
		},
		"ok, non-default METRICS_ADDR": {
			key: "METRICS_ADDR", val: ":9100", mf: func(c *config) { c.metricsAddr = ":9100" },
		},
		"ok, non-default LOG_FORMAT": {
			key: "LOG_FORMAT", val: "json", mf: func(c *config) { c.log.format = logging.FormatJSON },
		},
		"ok, non-default LOG_LEVEL": {
			key: "LOG_LEVEL", val: "debug", mf: func(c *config) { c.log.level = slog.LevelDebug },
		},
		"ok, non-default AUTH_WORKER_TIMEOUT": {
			key: "AUTH_WORKER_TIMEOUT", val: "42s", mf: func(c *config) { c.auth.WorkerTimeout = 42 * time.Second },
		},
		"ok, non-default IDENTITY_API_URL": {
			key: "IDENTITY_API_URL",
			val: "http://localhost:9099/identitytoolkit.googleapis.com/v1",
			mf: func(c *config) {
				c.identity.firebase.APIURL = must(url.Parse("http://localhost:9099/identitytoolkit.googleapis.com/v1"))
			},
		},
		"ok, other IDENTITY_API_KEY": {
			key: "IDENTITY_API_KEY", val: "testKey", mf: func(c *config) { c.identity.firebase.APIKey = krypto.NewSecret("testKey") },
		},
		"ok, non-default IDENTITY_TIMEOUT": {
			key: "IDENTITY_TIMEOUT", val: "3s", mf: func(c *config) { c.identity.timeout = 3 * time.Second },
		},
		"ok, non-default IDENTITY_MEMORY_AUTOVERIFY": {
			key: "IDENTITY_MEMORY_AUTOVERIFY", val: "true", mf: func(c *config) { c.identity.memoryAutoVerify = true },
		},
	}

	for name, tc := range valid {
		t.Run(name, func(t *testing.T) {
			// set the required env variables.
			for key, val := range requiredEnvForTest() {
				envForTest(t, key, val)
			}

			// set the tested env variable
			envForTest(t, tc.key, tc.val)

			got, err := configFromEnv()
			require.NoError(t, err)
			assert.Equal(t, newConfig(tc.mf), got)
		})
	}

	t.Run("ok, firebase driver with api key", func(t *testing.T) {
		for key, val := range requiredEnvForTest() {
			envForTest(t, key, val)
		}
		envForTest(t, "IDENTITY_DRIVER", "firebase")
		envForTest(t, "IDENTITY_API_KEY", "testKey")

		got, err := configFromEnv()
		require.NoError(t, err)
		assert.Equal(t, newConfig(func(c *config) {
			c.identity.driver = identityDriverFirebase
			c.identity.firebase.APIKey = krypto.NewSecret("testKey")
		}), got)
	})

	invalid := map[string]struct {
		key string
		val string
	}{
		"fail, negative HTTP_READ_TIMEOUT":         {"HTTP_READ_TIMEOUT", "-1ms"},
		"fail, negative HTTP_WRITE_TIMEOUT":        {"HTTP_WRITE_TIMEOUT", "-1ms"},
		"fail, negative HTTP_IDLE_TIMEOUT":         {"HTTP_IDLE_TIMEOUT", "-1ms"},
		"fail, negative HTTP_SHUTDOWN_TIMEOUT":     {"HTTP_SHUTDOWN_TIMEOUT", "-1ms"},
		"fail, invalid HTTP_COOKIE_KEYS":           {"HTTP_COOKIE_KEYS", "abc"},
		"fail, empty HTTP_COOKIE_KEYS":             {"HTTP_COOKIE_KEYS", ""},
		"fail, invalid HTTP_SECURE_COOKIE":         {"HTTP_SECURE_COOKIE", "abc"},
		"fail, invalid HTTP_CSRF_KEY":              {"HTTP_CSRF_KEY", "abc"},
		"fail, invalid LOG_FORMAT":                 {"LOG_FORMAT", "xml"},
		"fail, invalid LOG_LEVEL":                  {"LOG_LEVEL", "loud"},
		"fail, negative AUTH_WORKER_TIMEOUT":       {"AUTH_WORKER_TIMEOUT", "-1ms"},
		"fail, zero AUTH_WORKER_TIMEOUT":           {"AUTH_WORKER_TIMEOUT", "0s"},
		"fail, unknown IDENTITY_DRIVER":            {"IDENTITY_DRIVER", "ldap"},
		"fail, relative IDENTITY_API_URL":          {"IDENTITY_API_URL", "/just-a-path"},
		"fail, negative IDENTITY_TIMEOUT":          {"IDENTITY_TIMEOUT", "-1ms"},
		"fail, invalid IDENTITY_MEMORY_AUTOVERIFY": {"IDENTITY_MEMORY_AUTOVERIFY", "maybe"},
	}

	for name, tc := range invalid {
		t.Run(name, func(t *testing.T) {
			// set the required env variables.
			for key, val := range requiredEnvForTest() {
				envForTest(t, key, val)
			}

			// set the tested env variable.
			envForTest(t, tc.key, tc.val)

			_, err := configFromEnv()
			require.Error(t, err)

			// These errors are immediately logged, so comparing on a string level is fine.
			assert.Contains(t, err.Error(), tc.key)
		})
	}

	t.Run("fail, IDENTITY_API_KEY not set for firebase driver", func(t *testing.T) {
		for key, val := range requiredEnvForTest() {
			envForTest(t, key, val)
		}
		envForTest(t, "IDENTITY_DRIVER", "firebase")

		_, err := configFromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "IDENTITY_API_KEY")
	})

	for key := range requiredEnvForTest() {
		t.Run(fmt.Sprintf("fail, env variable %s not set", key), func(t *testing.T) {
			// set all required env variables except the one being tested.
			for k, val := range requiredEnvForTest() {
				if k != key {
					envForTest(t, k, val)
				}
			}

			_, err := configFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}

	t.Run("fail, multiple invalid env variables", func(t *testing.T) {
		// set the required env variables.
		for key, val := range requiredEnvForTest() {
			envForTest(t, key, val)
		}

		// set two invalid env variables.
		envForTest(t, "HTTP_READ_TIMEOUT", "-1ms")
		envForTest(t, "HTTP_WRITE_TIMEOUT", "-1ms")

		_, err := configFromEnv()
		require.Error(t, err)

		// Both variables are reported.
		assert.Contains(t, err.Error(), "HTTP_READ_TIMEOUT")
		assert.Contains(t, err.Error(), "HTTP_WRITE_TIMEOUT")
	})
}

// envForTest sets an environment variable for a test and unsets it when the test is done.
func envForTest(t *testing.T, key, val string) {
	t.Helper()

	t.Cleanup(func() {
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset env var %s: %v", key, err)
		}
	})

	if err := os.Setenv(key, val); err != nil {
		t.Fatalf("failed to set env var %s: %v", key, err)
	}
}
