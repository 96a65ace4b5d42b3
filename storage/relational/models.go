package relational

import (
	"time"
)

// LedgerHeader is a row of the Ledgers table of the ledger database.
type LedgerHeader struct {
	LedgerSeq       uint32 `gorm:"primaryKey;autoIncrement:false"`
	LedgerHash      string `gorm:"uniqueIndex;size:64;not null"`
	PrevHash        string `gorm:"size:64"`
	TotalCoins      uint64
	TotalCoinsVBC   uint64 `gorm:"column:total_coins_vbc"`
	ClosingTime     uint32
	PrevClosingTime uint32
	CloseTimeRes    uint8
	CloseFlags      uint8
	AccountSetHash  string `gorm:"size:64"`
	TransSetHash    string `gorm:"size:64"`
}

// TableName returns the table name for LedgerHeader.
func (LedgerHeader) TableName() string {
	return "Ledgers"
}

// Validation is a row of the Validations table of the ledger database.
type Validation struct {
	ID         uint64 `gorm:"primaryKey"`
	LedgerSeq  uint32 `gorm:"index"`
	LedgerHash string `gorm:"index;size:64"`
	NodePubKey string `gorm:"size:128"`
	SignTime   uint32
	RawData    []byte
}

// TableName returns the table name for Validation.
func (Validation) TableName() string {
	return "Validations"
}

// Transaction is a row of the Transactions table of the transaction database.
type Transaction struct {
	TransID   string `gorm:"primaryKey;size:64"`
	TransType string `gorm:"size:32"`
	FromAcct  string `gorm:"size:64"`
	FromSeq   uint32
	LedgerSeq uint32 `gorm:"index"`
	Status    string `gorm:"size:1"`
	RawTxn    []byte
	TxnMeta   []byte
}

// TableName returns the table name for Transaction.
func (Transaction) TableName() string {
	return "Transactions"
}

// AccountTransaction links an account to a transaction affecting it.
type AccountTransaction struct {
	TransID   string `gorm:"primaryKey;size:64"`
	Account   string `gorm:"primaryKey;size:64"`
	LedgerSeq uint32 `gorm:"index"`
	TxnSeq    uint32
}

// TableName returns the table name for AccountTransaction.
func (AccountTransaction) TableName() string {
	return "AccountTransactions"
}

// Manifest is a row of the wallet database holding a validator key manifest.
type Manifest struct {
	PublicKey string `gorm:"primaryKey;size:128"`
	Sequence  uint32
	RawData   []byte
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for Manifest.
func (Manifest) TableName() string {
	return "ValidatorManifests"
}

// LedgerModels returns the models of the ledger database.
func LedgerModels() []any {
	return []any{&LedgerHeader{}, &Validation{}}
}

// TransactionModels returns the models of the transaction database.
func TransactionModels() []any {
	return []any{&Transaction{}, &AccountTransaction{}}
}

// WalletModels returns the models of the wallet database.
func WalletModels() []any {
	return []any{&Manifest{}}
}
