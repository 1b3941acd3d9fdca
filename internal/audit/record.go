// Package audit persists one record per address resolution attempt.
package audit

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Format tells how the caller asked for the schedule.
type Format string

const (
	FormatWeb       Format = "web"
	FormatICS       Format = "ics"
	FormatCSV       Format = "csv"
	FormatJSON      Format = "json"
	FormatUndefined Format = "undefined"
)

// NoWarnings is stored when the resolution succeeded.
const NoWarnings = "no warnings"

const (
	DriverSQLite = "sqlite3"
	DriverMongo  = "mongo"

	tableName = "addresses"
)

// Record is a single append-only audit entry.
type Record struct {
	Created     time.Time `json:"created" bson:"created"`
	PostalCode  int       `json:"postalcode" bson:"postalcode"`
	StreetName  string    `json:"streetname" bson:"streetname"`
	HouseNumber string    `json:"housenumber" bson:"housenumber"`
	HTTPStatus  string    `json:"http_status" bson:"http_status"`
	Warning     string    `json:"api_warning" bson:"api_warning"`
	Format      Format    `json:"format" bson:"format"`
}

// Sink accepts audit records.
type Sink interface {
	Record(ctx context.Context, rec Record) error
}

// Reader lists the most recent records, newest first.
type Reader interface {
	Recent(ctx context.Context, limit int) ([]Record, error)
}

type Store interface {
	Sink
	Reader
}

// Error marks a failure of the audit sink itself.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return "audit: " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Open returns the store for driver. Connections are opened per call.
func Open(driver, dsn, database string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("audit: dsn is required for driver %q", driver)
	}
	switch driver {
	case DriverSQLite:
		return NewSQLStore(driver, dsn), nil
	case DriverMongo:
		if strings.TrimSpace(database) == "" {
			return nil, fmt.Errorf("audit: database name is required for driver %q", driver)
		}
		return NewMongoStore(dsn, database), nil
	default:
		return nil, fmt.Errorf("audit: unsupported driver %q", driver)
	}
}
