// Package sqlite implements the store contracts on SQLite through gorm.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/wealth-tracker/internal/domain"
	"github.com/dvloznov/wealth-tracker/internal/store"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var _ store.Repository = (*DB)(nil)

// DB is the SQLite backed store.Repository.
type DB struct {
	*queries

	gorm *gorm.DB
	log  zerolog.Logger
}

// queries runs store operations on a gorm handle, which is either the root
// connection or an open transaction.
type queries struct {
	db *gorm.DB
}

// Open opens (creating if needed) the database file at path with foreign key
// enforcement on. SQLite allows one writer, so the pool holds one connection.
func Open(path string, log zerolog.Logger) (*DB, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + "_foreign_keys=1"

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Discard,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("Open: connecting to %s: %w", path, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("Open: getting sql handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(0)

	return &DB{
		queries: &queries{db: gdb},
		gorm:    gdb,
		log:     log.With().Str("component", "sqlite").Logger(),
	}, nil
}

// OpenInMemory opens a private in-memory database with the schema applied.
func OpenInMemory(log zerolog.Logger) (*DB, error) {
	db, err := Open(":memory:", log)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the schema.
func (d *DB) Migrate(ctx context.Context) error {
	err := d.gorm.WithContext(ctx).AutoMigrate(
		&cashTransactionRow{},
		&savingsGoalRow{},
		&allocationRow{},
		&expenseRow{},
		&assetRow{},
		&holdingRow{},
		&assetTransactionRow{},
	)
	if err != nil {
		return fmt.Errorf("Migrate: auto-migrating schema: %w", err)
	}
	d.log.Debug().Msg("schema migrated")
	return nil
}

// WithinTx runs fn inside a database transaction.
func (d *DB) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return d.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&queries{db: tx})
	})
}

// Close releases the underlying connection.
func (d *DB) Close() error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return fmt.Errorf("Close: getting sql handle: %w", err)
	}
	return sqlDB.Close()
}

// Export reads every table in one transaction so the dump is consistent.
func (d *DB) Export(ctx context.Context) (*store.Dump, error) {
	dump := &store.Dump{ExportedAt: time.Now().UTC()}

	err := d.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		if dump.Transactions, err = tx.ListCashTransactions(ctx, store.Range{}); err != nil {
			return err
		}
		if dump.Expenses, err = tx.ListExpenses(ctx, store.Range{}); err != nil {
			return err
		}
		if dump.SavingsGoals, err = tx.ListSavingsGoals(ctx); err != nil {
			return err
		}
		if dump.Assets, err = tx.ListAssets(ctx, nil); err != nil {
			return err
		}
		if dump.Holdings, err = tx.ListHoldings(ctx, nil); err != nil {
			return err
		}
		dump.AssetTransactions, err = tx.ListAssetTransactions(ctx, store.TradeFilter{})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("Export: %w", err)
	}
	return dump, nil
}

func inRange(db *gorm.DB, column string, r store.Range) *gorm.DB {
	if r.From != nil {
		db = db.Where(column+" >= ?", r.From.UTC())
	}
	if r.To != nil {
		db = db.Where(column+" <= ?", r.To.UTC())
	}
	return db
}

func notFound(err error, kind, key string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NotFoundError(kind, key)
	}
	return err
}

func typeStrings(types []domain.AssetType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
