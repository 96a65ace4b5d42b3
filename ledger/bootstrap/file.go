package bootstrap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/vbc-network/vbcd/ledger"
	"github.com/vbc-network/vbcd/ledger/common/hash"
	"github.com/vbc-network/vbcd/module/util"
)

// Keys of the ledger file format.
const (
	keyResult              = "result"
	keyLedger              = "ledger"
	keyAccountState        = "accountState"
	keyLedgerIndex         = "ledger_index"
	keyLedgerHash          = "ledger_hash"
	keyParentHash          = "parent_hash"
	keyAccountHash         = "account_hash"
	keyCloseTime           = "close_time"
	keyParentCloseTime     = "parent_close_time"
	keyCloseTimeResolution = "close_time_resolution"
	keyCloseTimeEstimated  = "close_time_estimated"
	keyTotalCoins          = "total_coins"
	keyTotalCoinsVBC       = "total_coinsVBC"
)

// fileHeader is the header part of a ledger file. Every field is optional.
type fileHeader struct {
	seq             uint32
	closeTime       ledger.NetTime
	resolution      uint8
	estimated       bool
	totalCoins      uint64
	totalCoinsVBC   uint64
	parentHash      hash.Hash
	parentCloseTime ledger.NetTime
}

// LoadFile builds a ledger from a JSON ledger file. The document is either a full ledger
// export, optionally wrapped in "result" and "ledger" objects, or a bare array of state entries.
// Entries which cannot be parsed are skipped with a warning.
func (b *Bootstrapper) LoadFile(path string) (*ledger.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s: %v: %w", path, err, ErrInvalidFile)
	}
	defer f.Close()

	return b.ReadLedger(f)
}

// ReadLedger is LoadFile reading from r.
func (b *Bootstrapper) ReadLedger(r io.Reader) (*ledger.Snapshot, error) {
	doc, err := decodeJSON(r)
	if err != nil {
		return nil, fmt.Errorf("unable to parse ledger JSON: %v: %w", err, ErrInvalidFile)
	}
	doc = unwrap(doc, keyResult)
	doc = unwrap(doc, keyLedger)

	header := fileHeader{
		seq:        ledger.GenesisSeq,
		closeTime:  b.clock.CloseTime(),
		resolution: ledger.DefaultCloseTimeResolution,
	}

	var state json.RawMessage = doc
	if fields, ok := asObject(doc); ok {
		if raw, ok := fields[keyAccountState]; ok {
			header, err = parseHeader(fields, header)
			if err != nil {
				return nil, err
			}
			state = raw
		}
	}

	var entries []json.RawMessage
	if err := unmarshalNumbers(state, &entries); err != nil {
		return nil, fmt.Errorf("state nodes must be an array: %w", ErrInvalidFile)
	}

	s := ledger.NewEmpty(b.family, header.seq, header.closeTime)
	if err := s.SetTotalCoins(header.totalCoins, header.totalCoinsVBC); err != nil {
		return nil, err
	}
	if !header.parentHash.IsZero() || header.parentCloseTime != 0 {
		if err := s.SetParent(header.parentHash, header.parentCloseTime); err != nil {
			return nil, err
		}
	}

	progress := util.LogProgress(b.log, fmt.Sprintf("importing ledger %d", header.seq), len(entries))
	for i, raw := range entries {
		progress(1)

		entry, err := ledger.ParseExportedEntry(raw)
		if err != nil {
			b.log.Warn().Err(err).Int("position", i).Msg("skipping invalid entry in ledger")
			continue
		}
		if err := s.AddEntry(entry); err != nil {
			b.log.Warn().Err(err).Str("index", entry.Index.String()).Msg("could not add entry to ledger")
		}
	}

	// SetAccepted freezes the ledger, so the nodes can be flushed
	err = s.SetAccepted(header.closeTime, header.resolution, !header.estimated)
	if err != nil {
		return nil, fmt.Errorf("could not accept ledger %d: %w", header.seq, err)
	}
	if _, err := s.Flush(); err != nil {
		return nil, fmt.Errorf("could not store ledger %d: %w", header.seq, err)
	}
	return s, nil
}

func parseHeader(fields map[string]json.RawMessage, header fileHeader) (fileHeader, error) {
	var err error
	if raw, ok := fields[keyLedgerIndex]; ok {
		var seq uint64
		seq, err = parseUint(raw, 32)
		if err != nil {
			return header, fmt.Errorf("%s: %v: %w", keyLedgerIndex, err, ErrInvalidFile)
		}
		header.seq = uint32(seq)
	}
	if raw, ok := fields[keyCloseTime]; ok {
		var t uint64
		t, err = parseUint(raw, 32)
		if err != nil {
			return header, fmt.Errorf("%s: %v: %w", keyCloseTime, err, ErrInvalidFile)
		}
		header.closeTime = ledger.NetTime(t)
	}
	if raw, ok := fields[keyParentCloseTime]; ok {
		var t uint64
		t, err = parseUint(raw, 32)
		if err != nil {
			return header, fmt.Errorf("%s: %v: %w", keyParentCloseTime, err, ErrInvalidFile)
		}
		header.parentCloseTime = ledger.NetTime(t)
	}
	if raw, ok := fields[keyCloseTimeResolution]; ok {
		var res uint64
		res, err = parseUint(raw, 8)
		if err != nil {
			return header, fmt.Errorf("%s: %v: %w", keyCloseTimeResolution, err, ErrInvalidFile)
		}
		header.resolution = uint8(res)
	}
	if raw, ok := fields[keyCloseTimeEstimated]; ok {
		if err = json.Unmarshal(raw, &header.estimated); err != nil {
			return header, fmt.Errorf("%s: %v: %w", keyCloseTimeEstimated, err, ErrInvalidFile)
		}
	}
	if raw, ok := fields[keyTotalCoins]; ok {
		header.totalCoins, err = parseUint(raw, 64)
		if err != nil {
			return header, fmt.Errorf("%s: %v: %w", keyTotalCoins, err, ErrInvalidFile)
		}
	}
	if raw, ok := fields[keyTotalCoinsVBC]; ok {
		header.totalCoinsVBC, err = parseUint(raw, 64)
		if err != nil {
			return header, fmt.Errorf("%s: %v: %w", keyTotalCoinsVBC, err, ErrInvalidFile)
		}
	}
	if raw, ok := fields[keyParentHash]; ok {
		var s string
		if err = json.Unmarshal(raw, &s); err != nil {
			return header, fmt.Errorf("%s: %v: %w", keyParentHash, err, ErrInvalidFile)
		}
		header.parentHash, err = hash.FromHex(s)
		if err != nil {
			return header, fmt.Errorf("%s: %v: %w", keyParentHash, err, ErrInvalidFile)
		}
	}
	return header, nil
}

// parseUint accepts a JSON number or a string holding a decimal number.
func parseUint(raw json.RawMessage, bits int) (uint64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var n json.Number
		if err := unmarshalNumbers(raw, &n); err != nil {
			return 0, err
		}
		s = n.String()
	}
	return strconv.ParseUint(s, 10, bits)
}

// ExportLedger writes the ledger in the ledger file format.
func ExportLedger(w io.Writer, s *ledger.Snapshot) error {
	info := s.Info()
	state := make([]*ledger.Entry, 0)
	err := s.ForEachEntry(func(entry *ledger.Entry) error {
		state = append(state, entry)
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not read state of ledger %d: %w", info.Seq, err)
	}

	doc := map[string]interface{}{
		keyLedger: map[string]interface{}{
			keyLedgerIndex:         info.Seq,
			keyLedgerHash:          info.Hash.String(),
			keyParentHash:          info.ParentHash.String(),
			keyAccountHash:         info.AccountHash.String(),
			keyCloseTime:           uint32(info.CloseTime),
			keyParentCloseTime:     uint32(info.ParentCloseTime),
			keyCloseTimeResolution: info.CloseTimeResolution,
			keyCloseTimeEstimated:  info.CloseTimeEstimated(),
			keyTotalCoins:          strconv.FormatUint(info.TotalCoins, 10),
			keyTotalCoinsVBC:       strconv.FormatUint(info.TotalCoinsVBC, 10),
			keyAccountState:        state,
		},
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func decodeJSON(r io.Reader) (json.RawMessage, error) {
	var doc json.RawMessage
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func asObject(doc json.RawMessage) (map[string]json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

// unwrap returns the member key of doc if doc is an object holding it.
func unwrap(doc json.RawMessage, key string) json.RawMessage {
	fields, ok := asObject(doc)
	if !ok {
		return doc
	}
	if inner, ok := fields[key]; ok {
		return inner
	}
	return doc
}

func unmarshalNumbers(raw json.RawMessage, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}
