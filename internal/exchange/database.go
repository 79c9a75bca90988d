package exchange

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/polyswap/polyswap-api/internal/provider"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateTransaction(ctx context.Context, tx *Transaction) error {
	return d.db.WithContext(ctx).Create(tx).Error
}

// GetTransaction looks a transaction up by internal id first, then by
// either provider id. The fallbacks make manual resync by provider id work
// through the same entry point the UI uses.
func (d *Database) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	var tx Transaction
	err := d.db.WithContext(ctx).
		Where("transaction_id = ? OR changenow_id = ? OR stealthex_id = ?", id, id, id).
		First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}

// GetTransactionByProviderID looks a transaction up by its provider tag
// and provider-assigned id.
func (d *Database) GetTransactionByProviderID(ctx context.Context, name provider.Name, providerID string) (*Transaction, error) {
	column := "changenow_id"
	if name == provider.StealthEx {
		column = "stealthex_id"
	}

	var tx Transaction
	err := d.db.WithContext(ctx).Where(column+" = ?", providerID).First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}

func (d *Database) UpdateTransaction(ctx context.Context, tx *Transaction) error {
	return d.db.WithContext(ctx).Save(tx).Error
}

// ListTransactions returns all transactions, newest first.
func (d *Database) ListTransactions(ctx context.Context) ([]Transaction, error) {
	var txs []Transaction
	if err := d.db.WithContext(ctx).Order("created_at DESC").Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}
