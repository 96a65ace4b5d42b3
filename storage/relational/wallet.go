package relational

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Wallet persists node local key material.
type Wallet struct {
	db *DB
}

func NewWallet(db *DB) *Wallet {
	return &Wallet{db: db}
}

// SaveManifests replaces the stored validator manifests with the given set.
func (w *Wallet) SaveManifests(ctx context.Context, manifests []*Manifest) error {
	return w.db.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Manifest{}).Error
		if err != nil {
			return fmt.Errorf("could not clear manifests: %w", err)
		}
		if len(manifests) == 0 {
			return nil
		}
		err = db.Clauses(clause.OnConflict{UpdateAll: true}).Create(manifests).Error
		if err != nil {
			return fmt.Errorf("could not save %d manifests: %w", len(manifests), err)
		}
		return nil
	})
}

// Manifests returns all stored manifests ordered by public key.
func (w *Wallet) Manifests(ctx context.Context) ([]*Manifest, error) {
	var rows []*Manifest
	err := w.db.db.WithContext(ctx).Order("public_key").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
