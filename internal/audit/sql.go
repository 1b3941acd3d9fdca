package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS ` + tableName + ` (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created TIMESTAMP NOT NULL,
	postalcode INTEGER NOT NULL,
	streetname TEXT NOT NULL,
	housenumber TEXT NOT NULL,
	http_status TEXT NOT NULL,
	api_warning TEXT NOT NULL,
	format TEXT NOT NULL
)`

// SQLStore writes records through database/sql. Each call opens its own
// handle and closes it before returning.
type SQLStore struct {
	driver string
	dsn    string
}

func NewSQLStore(driver, dsn string) *SQLStore {
	return &SQLStore{driver: driver, dsn: dsn}
}

func (s *SQLStore) open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", s.driver, err)
	}
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("failed to create %s table: %w", tableName, describeSQLiteError(err))
	}
	return db, nil
}

// Record inserts rec, creating the table on first use.
func (s *SQLStore) Record(ctx context.Context, rec Record) error {
	db, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer closeDB(db)

	_, err = db.ExecContext(ctx,
		`INSERT INTO `+tableName+` (created, postalcode, streetname, housenumber, http_status, api_warning, format)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Created.UTC(), rec.PostalCode, rec.StreetName, rec.HouseNumber, rec.HTTPStatus, rec.Warning, string(rec.Format))
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", describeSQLiteError(err))
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *SQLStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	db, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer closeDB(db)

	rows, err := db.QueryContext(ctx,
		`SELECT created, postalcode, streetname, housenumber, http_status, api_warning, format
		FROM `+tableName+` ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		var format string
		if err := rows.Scan(&rec.Created, &rec.PostalCode, &rec.StreetName, &rec.HouseNumber,
			&rec.HTTPStatus, &rec.Warning, &format); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		rec.Format = Format(format)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		log.WithError(err).Warn("Failed to close audit database")
	}
}

// describeSQLiteError adds the extended sqlite code, which tells a locked
// database apart from a read-only or corrupt one.
func describeSQLiteError(err error) error {
	if sqliteErr, ok := err.(sqlite3.Error); ok {
		return fmt.Errorf("%w (sqlite code %d/%d)", err, sqliteErr.Code, sqliteErr.ExtendedCode)
	}
	return err
}
