package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/vbc-network/vbcd/config"
	"github.com/vbc-network/vbcd/module"
	"github.com/vbc-network/vbcd/storage"
	"github.com/vbc-network/vbcd/storage/nodestore"
	"github.com/vbc-network/vbcd/storage/relational"
)

// stores are the databases of the node.
type stores struct {
	nodes    storage.NodeStore
	ledgerDB *relational.DB
	txDB     *relational.DB
	walletDB *relational.DB
}

// openStores opens the relational databases and the node store. Whatever was opened is closed
// again if a later store fails.
func (b *NodeBuilder) openStores(ctx context.Context, collector module.CacheMetrics, items config.SizedItems) (*stores, error) {
	s := &stores{}
	var err error
	defer func() {
		if err != nil {
			closeErr := s.close()
			if closeErr != nil {
				b.log.Warn().Err(closeErr).Msg("could not close stores after failed setup")
			}
		}
	}()

	s.ledgerDB, err = relational.Open(ctx, b.log, filepath.Join(b.cfg.DatabasePath, relational.LedgerDBName), relational.LedgerModels()...)
	if err != nil {
		return nil, fmt.Errorf("could not open ledger database: %w", err)
	}
	s.txDB, err = relational.Open(ctx, b.log, filepath.Join(b.cfg.DatabasePath, relational.TransactionDBName), relational.TransactionModels()...)
	if err != nil {
		return nil, fmt.Errorf("could not open transaction database: %w", err)
	}
	s.walletDB, err = relational.Open(ctx, b.log, filepath.Join(b.cfg.DatabasePath, relational.WalletDBName), relational.WalletModels()...)
	if err != nil {
		return nil, fmt.Errorf("could not open wallet database: %w", err)
	}

	err = s.ledgerDB.SetCacheSize(items.LgrDBCache)
	if err != nil {
		return nil, err
	}
	err = s.txDB.SetCacheSize(items.TxnDBCache)
	if err != nil {
		return nil, err
	}

	s.nodes, err = nodestore.Open(ctx, b.log, collector, b.cfg.NodeDBBackend, b.cfg.NodeDBPath(), items.NodeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("could not open node store: %w", err)
	}
	b.log.Info().
		Str("backend", s.nodes.Name()).
		Str("path", b.cfg.NodeDBPath()).
		Msg("node store opened")
	return s, nil
}

// close closes every opened store and combines the errors.
func (s *stores) close() error {
	var errs error
	if s.nodes != nil {
		errs = multierr.Append(errs, s.nodes.Close())
	}
	for _, db := range []*relational.DB{s.ledgerDB, s.txDB, s.walletDB} {
		if db != nil {
			errs = multierr.Append(errs, db.Close())
		}
	}
	return errs
}
