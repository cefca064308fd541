package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vsinha/fulfillment/pkg/domain/repositories"
)

// PostgreSQL error codes the store maps onto domain errors
const (
	PgErrForeignKeyViolation = "23503" // foreign_key_violation
	PgErrUniqueViolation     = "23505" // unique_violation
	PgErrCheckViolation      = "23514" // check_violation
)

// Store persists the catalog, orders and the ledger in PostgreSQL.
// Ledger updates take row locks (SELECT ... FOR UPDATE) in ascending material
// id order, and order work is serialized with advisory locks, so concurrent
// engines sharing one database stay consistent.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// Verify interface compliance
var _ repositories.Store = (*Store)(nil)

// NewStore wraps an open gorm connection
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger, now: time.Now}
}

// Connect opens the database, retrying while the server comes up
func Connect(ctx context.Context, dsn string, attempts int, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := range attempts {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err == nil {
			sqlDB, dbErr := db.DB()
			if dbErr == nil {
				err = sqlDB.PingContext(ctx)
			} else {
				err = dbErr
			}
		}
		if err == nil {
			logger.Info("connected to postgres", zap.Int("attempt", i+1))
			return NewStore(db, logger), nil
		}

		lastErr = err
		logger.Warn("postgres connection attempt failed", zap.Int("attempt", i+1), zap.Error(err))
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return nil, fmt.Errorf("failed to connect to postgres after %d attempts: %w", attempts, lastErr)
}

// Migrate creates or updates every table the store uses
func (s *Store) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&materialRow{},
		&productRow{},
		&bomEdgeRow{},
		&orderRow{},
		&orderLineRow{},
		&reservationRow{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	s.logger.Info("database migration completed")
	return nil
}

// Close releases the underlying connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// mapError translates a unique violation into dup, wrapping the subject;
// any other error is wrapped unchanged
func mapError(err error, subject string, dup error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == PgErrUniqueViolation && dup != nil {
		return fmt.Errorf("%s: %w", subject, dup)
	}
	return fmt.Errorf("%s: %w", subject, err)
}

// notFound maps gorm's missing-row error onto a domain error
func notFound(err error, subject string, missing error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", subject, missing)
	}
	return fmt.Errorf("%s: %w", subject, err)
}
