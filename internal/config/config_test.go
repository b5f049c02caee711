package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const strongSecret = "0123456789abcdef0123456789abcdef"

// setEnvs sets the given variables for the duration of the test. Empty values
// unset the variable.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
		if v == "" {
			require.NoError(t, os.Unsetenv(k))
		}
	}
}

// noDotenv points Load at a file that does not exist so a stray .env in the
// working directory cannot leak into tests.
func noDotenv(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func baseEnv() map[string]string {
	return map[string]string{
		"ENVIRONMENT":       "development",
		"JWT_SECRET":        "dev-secret",
		"VAPID_PUBLIC_KEY":  "BPublic",
		"VAPID_PRIVATE_KEY": "private",
		"HTTP_PORT":         "",
		"PORT":              "",
		"DELAY_QUEUE":       "",
		"CLIENT_URL":        "",
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnvs(t, baseEnv())

	cfg, err := Load(noDotenv(t))
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.ListenPort())
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 168*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, "MyPWA App", cfg.TOTPIssuer)
	assert.Equal(t, uint(1), cfg.TOTPSkew)
	assert.Equal(t, "mailto:test@test.com", cfg.VAPIDSubject)
	assert.Equal(t, QueueMemory, cfg.DelayQueue)
	assert.True(t, cfg.CookieSecure)
	assert.False(t, cfg.TrustProxyHeaders)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins())
}

func TestLoad_HTTPPortWinsOverPort(t *testing.T) {
	env := baseEnv()
	env["PORT"] = "8080"
	env["HTTP_PORT"] = "9090"
	setEnvs(t, env)

	cfg, err := Load(noDotenv(t))
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.ListenPort())
}

func TestLoad_MissingRequired(t *testing.T) {
	env := baseEnv()
	env["JWT_SECRET"] = ""
	env["VAPID_PRIVATE_KEY"] = ""
	setEnvs(t, env)

	cfg, err := Load(noDotenv(t))
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
	assert.Contains(t, err.Error(), "VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY are required")
}

func TestLoad_Production_RejectsShortSecret(t *testing.T) {
	env := baseEnv()
	env["ENVIRONMENT"] = "production"
	env["JWT_SECRET"] = "short"
	setEnvs(t, env)

	_, err := Load(noDotenv(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 characters")
}

func TestLoad_Production_AcceptsStrongSecret(t *testing.T) {
	env := baseEnv()
	env["ENVIRONMENT"] = "production"
	env["JWT_SECRET"] = strongSecret
	setEnvs(t, env)

	cfg, err := Load(noDotenv(t))
	require.NoError(t, err)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_InvalidDelayQueue(t *testing.T) {
	env := baseEnv()
	env["DELAY_QUEUE"] = "kafka"
	setEnvs(t, env)

	_, err := Load(noDotenv(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DELAY_QUEUE")
}

func TestLoad_Dotenv(t *testing.T) {
	env := baseEnv()
	env["JWT_SECRET"] = ""
	env["TOTP_ISSUER"] = ""
	setEnvs(t, env)

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=from-dotenv\nTOTP_ISSUER=Dotenv App\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.JWTSecret)
	assert.Equal(t, "Dotenv App", cfg.TOTPIssuer)
}

func TestAllowedOrigins(t *testing.T) {
	cfg := &Config{ClientURL: "https://app.example.com, https://admin.example.com"}
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.AllowedOrigins())
}

func TestPostgres_PrefersDatabaseURL(t *testing.T) {
	cfg := &Config{DatabaseURL: "postgres://u:p@db:5432/app", PostgresHost: "ignored"}
	pg := cfg.Postgres()
	assert.Equal(t, "postgres://u:p@db:5432/app", pg.DSN())
}

func TestPostgres_BuildsDSNFromParts(t *testing.T) {
	cfg := &Config{
		PostgresHost: "db", PostgresPort: 5433, PostgresUser: "push",
		PostgresPass: "secret", PostgresDB: "pushgate", PostgresSSL: "require",
	}
	pg := cfg.Postgres()
	dsn := pg.DSN()
	assert.True(t, strings.HasPrefix(dsn, "postgres://push:secret@db:5433/pushgate"))
	assert.Contains(t, dsn, "sslmode=require")
}

func TestTracing(t *testing.T) {
	cfg := &Config{Environment: "staging", OTELEnabled: true, OTELSampleRate: 0.5}
	tc := cfg.Tracing("1.2.3")
	assert.Equal(t, "pushgate", tc.ServiceName)
	assert.Equal(t, "1.2.3", tc.ServiceVersion)
	assert.Equal(t, 0.5, tc.SampleRate)
	assert.True(t, tc.Enabled)
}
