package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vsinha/fulfillment/pkg/domain/entities"
	"github.com/vsinha/fulfillment/pkg/domain/repositories"
)

// Ledger mutates on-hand and reserved quantities. Every call is one atomic
// unit over the ledger store; multi-material batches apply all or nothing.
type Ledger struct {
	store  repositories.LedgerStore
	logger *zap.Logger
}

// NewLedger creates a ledger over the given store
func NewLedger(store repositories.LedgerStore, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: store, logger: logger.Named("ledger")}
}

// Snapshot returns a consistent view of the given materials
func (l *Ledger) Snapshot(ctx context.Context, ids []entities.MaterialID) (map[entities.MaterialID]entities.Material, error) {
	return l.store.Snapshot(ctx, ids)
}

// AdjustOnHand applies a manual correction to on-hand stock
func (l *Ledger) AdjustOnHand(ctx context.Context, id entities.MaterialID, delta entities.Quantity) (*entities.Material, error) {
	var after entities.Material
	err := l.store.Update(ctx, []entities.MaterialID{id}, func(tx repositories.LedgerTx) error {
		m, err := tx.Material(id)
		if err != nil {
			return err
		}
		if err := m.AdjustOnHand(delta); err != nil {
			return err
		}
		after = *m
		return nil
	})
	if err != nil {
		l.logFailure("adjust on-hand", err, zap.String("material_id", string(id)), zap.Int64("delta", int64(delta)))
		return nil, err
	}

	l.logger.Info("on-hand adjusted",
		zap.String("material_id", string(id)),
		zap.Int64("delta", int64(delta)),
		zap.Int64("on_hand", int64(after.OnHand)),
		zap.Int64("reserved", int64(after.Reserved)))
	return &after, nil
}

// Reserve claims units of one material
func (l *Ledger) Reserve(ctx context.Context, id entities.MaterialID, units entities.Quantity) (*entities.Material, error) {
	return l.single(ctx, "reserve", id, units, (*entities.Material).Reserve)
}

// Release returns reserved units of one material to available stock
func (l *Ledger) Release(ctx context.Context, id entities.MaterialID, units entities.Quantity) (*entities.Material, error) {
	return l.single(ctx, "release", id, units, (*entities.Material).Release)
}

// Commit permanently consumes reserved units of one material
func (l *Ledger) Commit(ctx context.Context, id entities.MaterialID, units entities.Quantity) (*entities.Material, error) {
	return l.single(ctx, "commit", id, units, (*entities.Material).Commit)
}

func (l *Ledger) single(
	ctx context.Context,
	op string,
	id entities.MaterialID,
	units entities.Quantity,
	apply func(*entities.Material, entities.Quantity) error,
) (*entities.Material, error) {
	var after entities.Material
	err := l.store.Update(ctx, []entities.MaterialID{id}, func(tx repositories.LedgerTx) error {
		m, err := tx.Material(id)
		if err != nil {
			return err
		}
		if err := apply(m, units); err != nil {
			return err
		}
		after = *m
		return nil
	})
	if err != nil {
		l.logFailure(op, err, zap.String("material_id", string(id)), zap.Int64("units", int64(units)))
		return nil, err
	}

	l.logger.Debug(op,
		zap.String("material_id", string(id)),
		zap.Int64("units", int64(units)),
		zap.Int64("on_hand", int64(after.OnHand)),
		zap.Int64("reserved", int64(after.Reserved)))
	return &after, nil
}

// ApplyReserve reserves every entry of units inside tx. The caller owns the
// unit of work; a failure part way leaves tx to be rolled back by the store.
func ApplyReserve(tx repositories.LedgerTx, units map[entities.MaterialID]entities.Quantity) error {
	return applyAll(tx, units, (*entities.Material).Reserve)
}

// ApplyRelease releases every entry of units inside tx
func ApplyRelease(tx repositories.LedgerTx, units map[entities.MaterialID]entities.Quantity) error {
	return applyAll(tx, units, (*entities.Material).Release)
}

// ApplyCommit commits every entry of units inside tx
func ApplyCommit(tx repositories.LedgerTx, units map[entities.MaterialID]entities.Quantity) error {
	return applyAll(tx, units, (*entities.Material).Commit)
}

func applyAll(
	tx repositories.LedgerTx,
	units map[entities.MaterialID]entities.Quantity,
	apply func(*entities.Material, entities.Quantity) error,
) error {
	for _, id := range entities.Requirements(units).MaterialIDs() {
		m, err := tx.Material(id)
		if err != nil {
			return err
		}
		if err := apply(m, units[id]); err != nil {
			return err
		}
	}
	return nil
}

// logFailure logs expected domain rejections at warn and anything else,
// including invariant violations surfaced by the store, at error.
func (l *Ledger) logFailure(op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))

	var (
		insufficient *entities.InsufficientStockError
		negative     *entities.NegativeStockError
		badRelease   *entities.InvalidReleaseError
		badCommit    *entities.InvalidCommitError
	)
	switch {
	case errors.As(err, &insufficient),
		errors.As(err, &negative),
		errors.Is(err, entities.ErrInvalidQuantity),
		errors.Is(err, entities.ErrMaterialNotFound),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		l.logger.Warn(fmt.Sprintf("%s rejected", op), fields...)
	case errors.As(err, &badRelease), errors.As(err, &badCommit):
		l.logger.Error(fmt.Sprintf("%s would break ledger arithmetic", op), fields...)
	default:
		l.logger.Error(fmt.Sprintf("%s failed", op), fields...)
	}
}
