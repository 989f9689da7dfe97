package store

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	BackendCSV      = "csv"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendSheets   = "sheets"
)

var Backends = []string{BackendCSV, BackendSQLite, BackendPostgres, BackendSheets}

type Options struct {
	Backend          string
	CSVPath          string
	SQLitePath       string
	PostgresURL      string
	SpreadsheetID    string
	Sheet            string
	CredentialsFile  string
	SheetsClientOpts []option.ClientOption
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the configured backend. The returned closer releases any
// database pool; it is a no-op for file and spreadsheet stores.
func Open(ctx context.Context, o Options, log *zap.Logger) (LeadStore, io.Closer, error) {
	switch o.Backend {
	case "", BackendCSV:
		s, err := NewCSVStore(o.CSVPath, log)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil

	case BackendSQLite:
		db, err := OpenSQLite(o.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", o.SQLitePath, err)
		}
		s, err := NewSQLStore(ctx, db, DialectSQLite, log)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return s, s, nil

	case BackendPostgres:
		db, err := OpenPostgres(o.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		s, err := NewSQLStore(ctx, db, DialectPostgres, log)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return s, s, nil

	case BackendSheets:
		opts := o.SheetsClientOpts
		if o.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(o.CredentialsFile))
		}
		s, err := NewSheetsStore(ctx, o.SpreadsheetID, o.Sheet, log, opts...)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", o.Backend)
}
