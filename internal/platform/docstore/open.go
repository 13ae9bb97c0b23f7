package docstore

import (
	"context"
	"fmt"

	"github.com/polarline/hvacdesk/internal/platform/db"
)

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Options selects and configures a backend.
type Options struct {
	Driver        string
	PGDSN         string
	PGMigrate     bool
	MongoURI      string
	MongoDatabase string
	SQLitePath    string
}

// Open builds the configured Store. The returned close func is never nil.
func Open(ctx context.Context, opts Options) (Store, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	switch opts.Driver {
	case DriverMemory, "":
		return NewMemory(), noop, nil
	case DriverMongo:
		store, err := OpenMongo(ctx, opts.MongoURI, opts.MongoDatabase)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	case DriverPostgres:
		if opts.PGMigrate {
			if err := Migrate(opts.PGDSN); err != nil {
				return nil, noop, err
			}
		}
		pool, err := db.New(ctx, opts.PGDSN)
		if err != nil {
			return nil, noop, err
		}
		return NewPostgres(pool), func(context.Context) error {
			pool.Close()
			return nil
		}, nil
	case DriverSQLite:
		store, err := OpenSQLite(opts.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	default:
		return nil, noop, fmt.Errorf("docstore: unknown driver %q", opts.Driver)
	}
}
