package relational

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Transactions indexes applied transactions and the accounts they affect.
type Transactions struct {
	db *DB
}

func NewTransactions(db *DB) *Transactions {
	return &Transactions{db: db}
}

// Save stores the transaction and its account links in one database transaction.
func (t *Transactions) Save(ctx context.Context, tx *Transaction, accounts []string, txnSeq uint32) error {
	return t.db.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(tx).Error
		if err != nil {
			return fmt.Errorf("could not save transaction %s: %w", tx.TransID, err)
		}
		for _, account := range accounts {
			link := AccountTransaction{
				TransID:   tx.TransID,
				Account:   account,
				LedgerSeq: tx.LedgerSeq,
				TxnSeq:    txnSeq,
			}
			err = db.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error
			if err != nil {
				return fmt.Errorf("could not link transaction %s to %s: %w", tx.TransID, account, err)
			}
		}
		return nil
	})
}

// ByID returns the transaction with the given hex ID.
// Expected errors:
//   - storage.ErrNotFound if no such transaction is stored
func (t *Transactions) ByID(ctx context.Context, id string) (*Transaction, error) {
	var row Transaction
	err := t.db.db.WithContext(ctx).Where("trans_id = ?", id).First(&row).Error
	if err != nil {
		return nil, convertNotFoundError(err)
	}
	return &row, nil
}

// BySeq returns the transactions of a ledger.
func (t *Transactions) BySeq(ctx context.Context, seq uint32) ([]*Transaction, error) {
	var rows []*Transaction
	err := t.db.db.WithContext(ctx).Where("ledger_seq = ?", seq).Order("trans_id").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// HasTxnSeq reports whether the AccountTransactions table carries the TxnSeq column.
// Databases created by older versions lack it; its absence only disables ordering by it.
func (t *Transactions) HasTxnSeq() bool {
	return t.db.HasColumn(&AccountTransaction{}, "TxnSeq")
}
