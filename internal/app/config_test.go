package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("VLAANDEREN_API_TOKEN", "token")

	cfg, err := LoadConfig(missingEnvFile(t))
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.UpstreamTimeout != 15*time.Second {
		t.Errorf("UpstreamTimeout = %s", cfg.Server.UpstreamTimeout)
	}
	if cfg.Calendar.Timezone != "Europe/Brussels" || cfg.Calendar.Notifications {
		t.Errorf("unexpected calendar defaults: %+v", cfg.Calendar)
	}
	if cfg.Audit.Driver != "sqlite3" {
		t.Errorf("Audit.Driver = %s", cfg.Audit.Driver)
	}
	route, err := cfg.PostalRoutes.Route(3000)
	if err != nil || route.Backend != "https://data.vlaanderen.be/id/straatnaam" {
		t.Errorf("Route(3000) = %v, %v", route, err)
	}
}

func TestLoadConfigRequiresAPIToken(t *testing.T) {
	t.Setenv("VLAANDEREN_API_TOKEN", "")
	if _, err := LoadConfig(missingEnvFile(t)); err == nil {
		t.Error("LoadConfig() succeeded without VLAANDEREN_API_TOKEN")
	}
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "VLAANDEREN_API_TOKEN=from-file\nSERVER_PORT=9090\nNOTIFICATIONS=true\nPOSTAL_ROUTES=1000-9999=https://data.vlaanderen.be/id/straatnaam\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"VLAANDEREN_API_TOKEN", "SERVER_PORT", "NOTIFICATIONS", "POSTAL_ROUTES"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if cfg.Vlaanderen.ApiToken != "from-file" || cfg.Server.Port != 9090 || !cfg.Calendar.Notifications {
		t.Errorf("env file not applied: %+v", cfg)
	}
	if n := len(cfg.PostalRoutes.Routes()); n != 1 {
		t.Errorf("expected 1 route, got %d", n)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"POSTAL_ROUTES":             "1000-5000=a,4000-9999=b",
		"TIMEZONE":                  "Mars/Olympus",
		"CALENDAR_LANGUAGE":         "xx",
		"AUDIT_DRIVER":              "oracle",
		"RECYCLEAPP_SECRET_PATTERN": "var n=",
		"UPSTREAM_TIMEOUT":          "soon",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv("VLAANDEREN_API_TOKEN", "token")
			t.Setenv(key, value)
			if _, err := LoadConfig(missingEnvFile(t)); err == nil {
				t.Errorf("LoadConfig() accepted %s=%q", key, value)
			}
		})
	}
}

func TestConfigurationLocation(t *testing.T) {
	var cfg Configuration
	cfg.Calendar.Timezone = "invalid/zone"
	if cfg.Location() != time.UTC {
		t.Error("invalid timezone should fall back to UTC")
	}
}
