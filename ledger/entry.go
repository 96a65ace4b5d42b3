package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vbc-network/vbcd/ledger/common/hash"
)

const (
	// FieldIndex is the key carrying an entry's hex index in ledger exports.
	FieldIndex = "index"
	// FieldLedgerEntryType names the entry type; every entry must carry it.
	FieldLedgerEntryType = "LedgerEntryType"

	EntryTypeAccountRoot = "AccountRoot"
)

// Entry is a ledger state entry: a JSON object stored in the account state tree under Index.
// Numbers are kept as json.Number so that an entry re-encodes to the same bytes.
type Entry struct {
	Index  hash.Hash
	Fields map[string]interface{}
}

// NewEntry checks and wraps the fields of a ledger entry.
func NewEntry(index hash.Hash, fields map[string]interface{}) (*Entry, error) {
	if index.IsZero() {
		return nil, fmt.Errorf("zero entry index: %w", ErrInvalidEntry)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("entry %v has no fields: %w", index, ErrInvalidEntry)
	}
	if _, isIndexed := fields[FieldIndex]; isIndexed {
		return nil, fmt.Errorf("entry %v carries an index field: %w", index, ErrInvalidEntry)
	}
	typ, ok := fields[FieldLedgerEntryType].(string)
	if !ok || typ == "" {
		return nil, fmt.Errorf("entry %v has no %s: %w", index, FieldLedgerEntryType, ErrInvalidEntry)
	}
	return &Entry{Index: index, Fields: fields}, nil
}

// Type returns the ledger entry type.
func (e *Entry) Type() string {
	typ, _ := e.Fields[FieldLedgerEntryType].(string)
	return typ
}

// Encode returns the canonical serialization stored in the state tree.
func (e *Entry) Encode() ([]byte, error) {
	return json.Marshal(e.Fields)
}

// MarshalJSON renders the entry in ledger export form, with its index.
func (e *Entry) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(e.Fields)+1)
	for k, v := range e.Fields {
		out[k] = v
	}
	out[FieldIndex] = e.Index.String()
	return json.Marshal(out)
}

// DecodeEntry parses a stored entry.
func DecodeEntry(index hash.Hash, data []byte) (*Entry, error) {
	fields, err := decodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("could not decode entry %v: %w", index, err)
	}
	return NewEntry(index, fields)
}

// ParseExportedEntry parses an entry in ledger export form: an object with a hex index field
// plus the entry fields.
func ParseExportedEntry(raw json.RawMessage) (*Entry, error) {
	fields, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	rawIndex, ok := fields[FieldIndex].(string)
	if !ok {
		return nil, fmt.Errorf("entry has no %s field: %w", FieldIndex, ErrInvalidEntry)
	}
	delete(fields, FieldIndex)

	index, err := hash.FromHex(rawIndex)
	if err != nil {
		return nil, fmt.Errorf("invalid entry index %q: %v: %w", rawIndex, err, ErrInvalidEntry)
	}
	return NewEntry(index, fields)
}

func decodeObject(data []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]interface{}
	err := dec.Decode(&fields)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidEntry)
	}
	if fields == nil {
		return nil, fmt.Errorf("entry is not an object: %w", ErrInvalidEntry)
	}
	return fields, nil
}

// AccountRootIndex returns the state tree index of an account's root entry.
func AccountRootIndex(account string) hash.Hash {
	return hash.Sum(hash.PrefixAccountIndex, []byte(account))
}

// NewAccountRoot returns the root entry of an account holding balance.
func NewAccountRoot(account string, balance uint64) *Entry {
	return &Entry{
		Index: AccountRootIndex(account),
		Fields: map[string]interface{}{
			FieldLedgerEntryType: EntryTypeAccountRoot,
			"Account":            account,
			"Balance":            fmt.Sprintf("%d", balance),
			"Flags":              json.Number("0"),
			"OwnerCount":         json.Number("0"),
			"Sequence":           json.Number("1"),
		},
	}
}
