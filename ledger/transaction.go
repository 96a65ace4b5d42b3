package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/vbc-network/vbcd/ledger/common/hash"
)

// FieldTransactionType names the transaction type; every transaction must carry it.
const FieldTransactionType = "TransactionType"

// Transaction is a signed transaction in canonical JSON form. Its ID is the prefixed hash of
// the canonical blob.
type Transaction struct {
	ID   hash.Hash
	Blob []byte
}

// NewTransaction canonicalizes the blob and computes the transaction ID.
func NewTransaction(blob []byte) (*Transaction, error) {
	fields, err := decodeObject(blob)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidTransaction)
	}
	if typ, ok := fields[FieldTransactionType].(string); !ok || typ == "" {
		return nil, fmt.Errorf("transaction has no %s: %w", FieldTransactionType, ErrInvalidTransaction)
	}
	canonical, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("could not encode transaction: %w", err)
	}
	return &Transaction{
		ID:   hash.Sum(hash.PrefixTxID, canonical),
		Blob: canonical,
	}, nil
}

// Fields returns the decoded transaction object.
func (tx *Transaction) Fields() (map[string]interface{}, error) {
	return decodeObject(tx.Blob)
}

// Meta is the outcome of applying a transaction in a closed ledger.
type Meta struct {
	TransactionIndex  uint32 `json:"TransactionIndex"`
	TransactionResult string `json:"TransactionResult"`
}

// EncodeTxWithMeta returns the transaction tree payload of a closed ledger transaction:
// the length prefixed transaction blob followed by the length prefixed metadata.
func EncodeTxWithMeta(tx *Transaction, meta *Meta) ([]byte, error) {
	metaBlob, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("could not encode metadata: %w", err)
	}
	buf, err := AppendVL(nil, tx.Blob)
	if err != nil {
		return nil, err
	}
	return AppendVL(buf, metaBlob)
}

// DecodeTxWithMeta reverses EncodeTxWithMeta.
func DecodeTxWithMeta(data []byte) (*Transaction, *Meta, error) {
	txBlob, rest, err := ReadVL(data)
	if err != nil {
		return nil, nil, fmt.Errorf("could not read transaction: %v: %w", err, ErrInvalidTransaction)
	}
	metaBlob, rest, err := ReadVL(rest)
	if err != nil {
		return nil, nil, fmt.Errorf("could not read metadata: %v: %w", err, ErrInvalidTransaction)
	}
	if len(rest) != 0 {
		return nil, nil, fmt.Errorf("%d trailing bytes after metadata: %w", len(rest), ErrInvalidTransaction)
	}
	tx, err := NewTransaction(txBlob)
	if err != nil {
		return nil, nil, err
	}
	var meta Meta
	err = json.Unmarshal(metaBlob, &meta)
	if err != nil {
		return nil, nil, fmt.Errorf("could not decode metadata: %v: %w", err, ErrInvalidTransaction)
	}
	return tx, &meta, nil
}

// Validity is the cached outcome of checking a transaction.
type Validity uint8

const (
	ValidityUnknown Validity = iota
	// ValiditySigBad means the signature check failed.
	ValiditySigBad
	// ValiditySigGoodOnly means the signature was verified but the transaction was not checked
	// against ledger rules.
	ValiditySigGoodOnly
	// ValidityValid means the transaction passed all local checks.
	ValidityValid
)

func (v Validity) String() string {
	switch v {
	case ValiditySigBad:
		return "sig_bad"
	case ValiditySigGoodOnly:
		return "sig_good_only"
	case ValidityValid:
		return "valid"
	default:
		return "unknown"
	}
}
