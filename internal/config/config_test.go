package config

import (
	"strings"
	"testing"
	"time"
)

func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", strings.Repeat("j", 32))
	t.Setenv("ENCRYPTION_KEY", strings.Repeat("e", 32))
}

func TestLoadDefaults(t *testing.T) {
	setValidEnv(t)

	c := Load()

	if c.Port != "8080" {
		t.Errorf("Port = %v, want 8080", c.Port)
	}
	if c.StorageType != "sqlite" {
		t.Errorf("StorageType = %v, want sqlite", c.StorageType)
	}
	if c.AccessTokenTTL != time.Hour {
		t.Errorf("AccessTokenTTL = %v, want 1h", c.AccessTokenTTL)
	}
	if c.RefreshTokenTTL != 30*24*time.Hour {
		t.Errorf("RefreshTokenTTL = %v, want 30d", c.RefreshTokenTTL)
	}
	if c.WebhookMaxAttempts != 6 {
		t.Errorf("WebhookMaxAttempts = %v, want 6", c.WebhookMaxAttempts)
	}
	if c.WebhookBackoffBase != 30*time.Second {
		t.Errorf("WebhookBackoffBase = %v, want 30s", c.WebhookBackoffBase)
	}
	if c.WebhookTimeout != 10*time.Second {
		t.Errorf("WebhookTimeout = %v, want 10s", c.WebhookTimeout)
	}
	if c.HealthWindow != 5*time.Minute {
		t.Errorf("HealthWindow = %v, want 5m", c.HealthWindow)
	}
	if c.HealthDegradedRatio != 0.05 {
		t.Errorf("HealthDegradedRatio = %v, want 0.05", c.HealthDegradedRatio)
	}
	if c.RedisEnabled() {
		t.Errorf("RedisEnabled() = true without REDIS_ADDRESS")
	}
	if len(c.RateLimitTiers) != 2 {
		t.Fatalf("RateLimitTiers = %v, want 2 tiers", c.RateLimitTiers)
	}
	if c.AuthRateLimit.Requests != 20 || c.AuthRateLimit.Window != time.Minute {
		t.Errorf("AuthRateLimit = %+v, want 20/1m", c.AuthRateLimit)
	}

	if err := c.Validate(); err != nil {
		t.Errorf("Validate() on defaults = %v, want nil", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	setValidEnv(t)
	t.Setenv("WEBHOOK_WORKERS", "3")
	t.Setenv("WEBHOOK_CRITICAL_EVENTS", "donation.completed, petition.signed")
	t.Setenv("REFRESH_TOKEN_TTL", "7d")
	t.Setenv("CACHE_ENABLED", "false")

	c := Load()

	if c.WebhookWorkers != 3 {
		t.Errorf("WebhookWorkers = %v, want 3", c.WebhookWorkers)
	}
	if len(c.WebhookCriticalEvents) != 2 || c.WebhookCriticalEvents[1] != "petition.signed" {
		t.Errorf("WebhookCriticalEvents = %v", c.WebhookCriticalEvents)
	}
	if c.RefreshTokenTTL != 7*24*time.Hour {
		t.Errorf("RefreshTokenTTL = %v, want 168h", c.RefreshTokenTTL)
	}
	if !c.CacheEnabled {
		t.Errorf("CacheEnabled = false, want true")
	}
	if len(c.TrustedProxies) != 0 {
		t.Errorf("TrustedProxies = %v, want none", c.TrustedProxies)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"short jwt secret", map[string]string{"JWT_SECRET": "short"}, "JWT_SECRET"},
		{"missing encryption key", map[string]string{"ENCRYPTION_KEY": ""}, "ENCRYPTION_KEY"},
		{"bad port", map[string]string{"PORT": "99999"}, "PORT"},
		{"unknown storage", map[string]string{"STORAGE_TYPE": "mongo"}, "STORAGE_TYPE"},
		{"redis backend without redis", map[string]string{"RATE_LIMIT_BACKEND": "redis"}, "REDIS_ADDRESS"},
		{"malformed integer", map[string]string{"WEBHOOK_WORKERS": "many"}, "WEBHOOK_WORKERS"},
		{"malformed duration", map[string]string{"WEBHOOK_TIMEOUT": "soon"}, "WEBHOOK_TIMEOUT"},
		{"malformed tiers", map[string]string{"RATE_LIMIT_TIERS": "free=lots"}, "RATE_LIMIT_TIERS"},
		{"unknown default tier", map[string]string{"RATE_LIMIT_DEFAULT_TIER": "gold"}, "gold"},
		{"malformed proxy", map[string]string{"TRUSTED_PROXIES": "10.0.0.0/8,proxy.internal"}, "TRUSTED_PROXIES"},
		{"kafka without brokers", map[string]string{"EVENT_SOURCE": "kafka"}, "KAFKA_BROKERS"},
		{"unknown source", map[string]string{"EVENT_SOURCE": "carrier-pigeon"}, "EVENT_SOURCE"},
		{"email without smtp", map[string]string{"ALERT_EMAIL_TO": "ops@example.com"}, "SMTP_HOST"},
		{"inverted ratios", map[string]string{"HEALTH_DEGRADED_RATIO": "0.5", "HEALTH_UNHEALTHY_RATIO": "0.2"}, "HEALTH_DEGRADED_RATIO"},
		{"half bootstrap", map[string]string{"BOOTSTRAP_CLIENT_ID": "admin"}, "BOOTSTRAP_CLIENT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setValidEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			err := Load().Validate()
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseRateLimitTiers(t *testing.T) {
	tiers, err := ParseRateLimitTiers("free=5/1m, partner=600/m, partner:events=10/1s")
	if err != nil {
		t.Fatalf("ParseRateLimitTiers() error = %v", err)
	}

	want := []RateLimitTier{
		{Tier: "free", Requests: 5, Window: time.Minute},
		{Tier: "partner", Requests: 600, Window: time.Minute},
		{Tier: "partner", RouteClass: "events", Requests: 10, Window: time.Second},
	}
	if len(tiers) != len(want) {
		t.Fatalf("got %d tiers, want %d", len(tiers), len(want))
	}
	for i := range want {
		if tiers[i] != want[i] {
			t.Errorf("tier[%d] = %+v, want %+v", i, tiers[i], want[i])
		}
	}

	for _, bad := range []string{"", "free", "free=0/1m", "free=5/never", "=5/1m"} {
		if _, err := ParseRateLimitTiers(bad); err == nil {
			t.Errorf("ParseRateLimitTiers(%q) = nil error, want failure", bad)
		}
	}
}

func TestPostgresDSN(t *testing.T) {
	c := &Config{
		PostgresUser: "gw", PostgresPassword: "pw", PostgresHost: "db",
		PostgresPort: "5432", PostgresDB: "gateway", PostgresSSLMode: "disable",
	}
	want := "postgres://gw:pw@db:5432/gateway?sslmode=disable"
	if got := c.PostgresDSN(); got != want {
		t.Errorf("PostgresDSN() = %v, want %v", got, want)
	}
}

func TestParseTrustedProxies(t *testing.T) {
	prefixes, err := ParseTrustedProxies([]string{"10.1.2.3/8", "192.0.2.10", "2001:db8::/32"})
	if err != nil {
		t.Fatalf("ParseTrustedProxies() error = %v", err)
	}

	want := []string{"10.0.0.0/8", "192.0.2.10/32", "2001:db8::/32"}
	if len(prefixes) != len(want) {
		t.Fatalf("got %d prefixes, want %d", len(prefixes), len(want))
	}
	for i, w := range want {
		if prefixes[i].String() != w {
			t.Errorf("prefix %d = %s, want %s", i, prefixes[i], w)
		}
	}

	if _, err := ParseTrustedProxies([]string{"10.0.0.0/33"}); err == nil {
		t.Error("ParseTrustedProxies(/33) = nil error, want error")
	}
}
