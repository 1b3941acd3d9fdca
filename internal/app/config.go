package app

import (
	"fmt"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/klabast/wb-services/recycle-kalender/internal/audit"
	"github.com/klabast/wb-services/recycle-kalender/internal/geo"
	"github.com/klabast/wb-services/recycle-kalender/internal/recycleapp"
)

// Constants
const (
	DefaultEnvFile = ".env"
	AuditPageSize  = 100

	// Error messages
	ErrMissingAddress       = "Please enter a postal code, street name and house number."
	ErrUnsupportedRegion    = "Addresses with this postal code are not supported."
	ErrProcessing           = "The collection schedule could not be retrieved. Please try again later."
	ErrAuditUnavailable     = "The request could not be registered. Please try again later."
	ErrInvalidFormat        = "Invalid format"
	ErrInternalServer       = "Internal server error"
	ErrFailedToGenerateJSON = "Failed to generate JSON"

	// ICS constants
	ICSProductID = "-//Recycle Kalender//Ophaalkalender//NL"
	ICSUIDDomain = "recycle-kalender"
)

// Configuration is read from the environment at startup and passed to every
// component that needs it.
type Configuration struct {
	Server struct {
		Port            uint          `env:"SERVER_PORT" envDefault:"8080"`
		UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"15s"`
	}
	RecycleApp struct {
		SiteURL       string `env:"RECYCLEAPP_SITE_URL" envDefault:"https://recycleapp.be"`
		BaseURL       string `env:"RECYCLEAPP_BASE_URL" envDefault:"https://recycleapp.be/api/app/v1/collections"`
		TokenURL      string `env:"RECYCLEAPP_TOKEN_URL" envDefault:"https://recycleapp.be/api/app/v1/access-token"`
		Consumer      string `env:"RECYCLEAPP_CONSUMER" envDefault:"recycleapp.be"`
		ScriptPattern string `env:"RECYCLEAPP_SCRIPT_PATTERN"`
		SecretPattern string `env:"RECYCLEAPP_SECRET_PATTERN"`
		PageSize      int    `env:"RECYCLEAPP_PAGE_SIZE" envDefault:"100"`
	}
	Vlaanderen struct {
		ApiURL   string `env:"VLAANDEREN_API_URL" envDefault:"https://api.basisregisters.vlaanderen.be/v1/"`
		ApiToken string `env:"VLAANDEREN_API_TOKEN,notEmpty"`
	}
	Audit struct {
		Driver   string `env:"AUDIT_DRIVER" envDefault:"sqlite3"`
		DSN      string `env:"AUDIT_DSN" envDefault:"file:audit.db?_busy_timeout=5000"`
		Database string `env:"AUDIT_DATABASE" envDefault:"recycle_kalender"`
	}
	Calendar struct {
		Notifications bool   `env:"NOTIFICATIONS" envDefault:"false"`
		Timezone      string `env:"TIMEZONE" envDefault:"Europe/Brussels"`
		Language      string `env:"CALENDAR_LANGUAGE" envDefault:"nl"`
	}
	PostalRoutes geo.RouteTable `env:"POSTAL_ROUTES" envDefault:"1000-1999=BE.BRUSSELS.BRIC.ADM.STR,2000-3999=https://data.vlaanderen.be/id/straatnaam,4000-7999=geodata.wallonie.be/id/streetname,8000-9999=https://data.vlaanderen.be/id/straatnaam"`
	AuthFile     string         `env:"AUTH_FILE"`

	Debug bool `env:"DEBUG" envDefault:"false"`
}

// LoadConfig reads envFile (if present) and then the process environment.
func LoadConfig(envFile string) (Configuration, error) {
	var cfg Configuration

	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil {
		log.WithError(err).WithField("file", envFile).Warn("Error loading .env file")
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("error parsing environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
		log.Warn("DEBUG MODE ENABLED")
	}
	return cfg, nil
}

// Validate checks the values env tags cannot express.
func (c Configuration) Validate() error {
	if _, err := time.LoadLocation(c.Calendar.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Calendar.Timezone, err)
	}
	if !recycleapp.SupportedLanguage(c.Calendar.Language) {
		return fmt.Errorf("unsupported CALENDAR_LANGUAGE %q", c.Calendar.Language)
	}
	if len(c.PostalRoutes.Routes()) == 0 {
		return fmt.Errorf("POSTAL_ROUTES is empty")
	}
	if err := c.PostalRoutes.Validate(); err != nil {
		return fmt.Errorf("invalid POSTAL_ROUTES: %w", err)
	}
	switch c.Audit.Driver {
	case audit.DriverSQLite, audit.DriverMongo:
	default:
		return fmt.Errorf("unsupported AUDIT_DRIVER %q", c.Audit.Driver)
	}
	for name, pattern := range map[string]string{
		"RECYCLEAPP_SCRIPT_PATTERN": c.RecycleApp.ScriptPattern,
		"RECYCLEAPP_SECRET_PATTERN": c.RecycleApp.SecretPattern,
	} {
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if re.NumSubexp() < 1 {
			return fmt.Errorf("invalid %s: pattern needs a capture group", name)
		}
	}
	return nil
}

// Location returns the configured calendar timezone.
func (c Configuration) Location() *time.Location {
	loc, err := time.LoadLocation(c.Calendar.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
