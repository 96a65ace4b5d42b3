package relational

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/vbc-network/vbcd/ledger"
	"github.com/vbc-network/vbcd/ledger/common/hash"
	"github.com/vbc-network/vbcd/storage"
)

// Ledgers indexes stored ledger headers by sequence and hash.
type Ledgers struct {
	db *DB
}

func NewLedgers(db *DB) *Ledgers {
	return &Ledgers{db: db}
}

// Save stores the header, replacing any header stored for the same sequence.
func (l *Ledgers) Save(ctx context.Context, info *ledger.Info) error {
	row := fromInfo(info)
	err := l.db.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("could not save ledger %d: %w", info.Seq, err)
	}
	return nil
}

// LoadLatest returns the header with the highest sequence.
// Expected errors:
//   - storage.ErrNotFound if no ledger is stored
func (l *Ledgers) LoadLatest(ctx context.Context) (*ledger.Info, error) {
	var row LedgerHeader
	err := l.db.db.WithContext(ctx).Order("ledger_seq DESC").First(&row).Error
	if err != nil {
		return nil, convertNotFoundError(err)
	}
	return row.toInfo()
}

// LoadByHash returns the header with the given hash.
// Expected errors:
//   - storage.ErrNotFound if no such ledger is stored
func (l *Ledgers) LoadByHash(ctx context.Context, h hash.Hash) (*ledger.Info, error) {
	var row LedgerHeader
	err := l.db.db.WithContext(ctx).Where("ledger_hash = ?", h.String()).First(&row).Error
	if err != nil {
		return nil, convertNotFoundError(err)
	}
	return row.toInfo()
}

// LoadBySeq returns the header with the given sequence.
// Expected errors:
//   - storage.ErrNotFound if no such ledger is stored
func (l *Ledgers) LoadBySeq(ctx context.Context, seq uint32) (*ledger.Info, error) {
	var row LedgerHeader
	err := l.db.db.WithContext(ctx).Where("ledger_seq = ?", seq).First(&row).Error
	if err != nil {
		return nil, convertNotFoundError(err)
	}
	return row.toInfo()
}

// HashBySeq returns the hash of the ledger with the given sequence.
// Expected errors:
//   - storage.ErrNotFound if no such ledger is stored
func (l *Ledgers) HashBySeq(ctx context.Context, seq uint32) (hash.Hash, error) {
	var row LedgerHeader
	err := l.db.db.WithContext(ctx).Select("ledger_hash").Where("ledger_seq = ?", seq).First(&row).Error
	if err != nil {
		return hash.ZeroHash, convertNotFoundError(err)
	}
	return hash.FromHex(row.LedgerHash)
}

// Range returns the lowest and highest stored sequence.
// Expected errors:
//   - storage.ErrNotFound if no ledger is stored
func (l *Ledgers) Range(ctx context.Context) (uint32, uint32, error) {
	var bounds struct {
		Min *uint32
		Max *uint32
	}
	err := l.db.db.WithContext(ctx).Model(&LedgerHeader{}).
		Select("MIN(ledger_seq) AS min, MAX(ledger_seq) AS max").
		Scan(&bounds).Error
	if err != nil {
		return 0, 0, err
	}
	if bounds.Min == nil || bounds.Max == nil {
		return 0, 0, storage.ErrNotFound
	}
	return *bounds.Min, *bounds.Max, nil
}

// SaveValidation records a received validation.
func (l *Ledgers) SaveValidation(ctx context.Context, v *Validation) error {
	err := l.db.db.WithContext(ctx).Create(v).Error
	if err != nil {
		return fmt.Errorf("could not save validation for ledger %d: %w", v.LedgerSeq, err)
	}
	return nil
}

// ValidationsBySeq returns the validations recorded for the sequence.
func (l *Ledgers) ValidationsBySeq(ctx context.Context, seq uint32) ([]*Validation, error) {
	var rows []*Validation
	err := l.db.db.WithContext(ctx).Where("ledger_seq = ?", seq).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func fromInfo(info *ledger.Info) LedgerHeader {
	return LedgerHeader{
		LedgerSeq:       info.Seq,
		LedgerHash:      info.Hash.String(),
		PrevHash:        info.ParentHash.String(),
		TotalCoins:      info.TotalCoins,
		TotalCoinsVBC:   info.TotalCoinsVBC,
		ClosingTime:     uint32(info.CloseTime),
		PrevClosingTime: uint32(info.ParentCloseTime),
		CloseTimeRes:    info.CloseTimeResolution,
		CloseFlags:      info.CloseFlags,
		AccountSetHash:  info.AccountHash.String(),
		TransSetHash:    info.TxHash.String(),
	}
}

// toInfo converts the row. The returned Hash is the stored one; callers verify it against
// ComputeHash.
func (row *LedgerHeader) toInfo() (*ledger.Info, error) {
	info := &ledger.Info{
		Seq:                 row.LedgerSeq,
		TotalCoins:          row.TotalCoins,
		TotalCoinsVBC:       row.TotalCoinsVBC,
		CloseTime:           ledger.NetTime(row.ClosingTime),
		ParentCloseTime:     ledger.NetTime(row.PrevClosingTime),
		CloseTimeResolution: row.CloseTimeRes,
		CloseFlags:          row.CloseFlags,
		Closed:              true,
	}
	var err error
	for _, field := range []struct {
		dst *hash.Hash
		src string
	}{
		{&info.Hash, row.LedgerHash},
		{&info.ParentHash, row.PrevHash},
		{&info.AccountHash, row.AccountSetHash},
		{&info.TxHash, row.TransSetHash},
	} {
		*field.dst, err = hash.FromHex(field.src)
		if err != nil {
			return nil, fmt.Errorf("ledger %d has a malformed hash column: %w", row.LedgerSeq, err)
		}
	}
	return info, nil
}
