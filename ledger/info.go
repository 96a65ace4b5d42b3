package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/vbc-network/vbcd/ledger/common/hash"
)

// DefaultCloseTimeResolution is the close time granularity, in seconds, of a ledger that does
// not specify one.
const DefaultCloseTimeResolution = 30

// Close flags.
const (
	// FlagNoConsensusTime marks a ledger whose close time was estimated rather than agreed.
	FlagNoConsensusTime uint8 = 0x01
)

// GenesisSeq is the sequence of the first ledger.
const GenesisSeq = 1

// Info is the ledger header. Hash covers every hashed field; the status flags
// (Closed, Accepted, Validated) are local bookkeeping and not part of the hash.
type Info struct {
	Seq                 uint32
	Hash                hash.Hash
	ParentHash          hash.Hash
	TxHash              hash.Hash
	AccountHash         hash.Hash
	ParentCloseTime     NetTime
	CloseTime           NetTime
	CloseTimeResolution uint8
	CloseFlags          uint8
	TotalCoins          uint64
	// TotalCoinsVBC is the second supply counter. It is carried and hashed but not interpreted.
	TotalCoinsVBC uint64

	Closed    bool
	Accepted  bool
	Validated bool
}

// headerSize is the length of the hashed header encoding.
const headerSize = 4 + 8 + 8 + 3*hash.HashLen + 4 + 4 + 1 + 1

// EncodeHeader returns the canonical encoding of the hashed header fields.
func (i *Info) EncodeHeader() []byte {
	buf := make([]byte, 0, headerSize)
	buf = binary.BigEndian.AppendUint32(buf, i.Seq)
	buf = binary.BigEndian.AppendUint64(buf, i.TotalCoins)
	buf = binary.BigEndian.AppendUint64(buf, i.TotalCoinsVBC)
	buf = append(buf, i.ParentHash[:]...)
	buf = append(buf, i.TxHash[:]...)
	buf = append(buf, i.AccountHash[:]...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(i.ParentCloseTime))
	buf = binary.BigEndian.AppendUint32(buf, uint32(i.CloseTime))
	buf = append(buf, i.CloseTimeResolution, i.CloseFlags)
	return buf
}

// ComputeHash returns the hash of the header fields. It does not modify Hash.
func (i *Info) ComputeHash() hash.Hash {
	return hash.Sum(hash.PrefixLedgerHeader, i.EncodeHeader())
}

// CloseTimeEstimated returns true if the close time was not agreed by consensus.
func (i *Info) CloseTimeEstimated() bool {
	return i.CloseFlags&FlagNoConsensusTime != 0
}

// DecodeHeader parses an encoded header and checks that it hashes to expected.
func DecodeHeader(expected hash.Hash, data []byte) (*Info, error) {
	if len(data) != headerSize {
		return nil, fmt.Errorf("ledger header has %d bytes, expected %d", len(data), headerSize)
	}
	info := &Info{}
	offset := 0
	next := func(n int) []byte {
		b := data[offset : offset+n]
		offset += n
		return b
	}
	info.Seq = binary.BigEndian.Uint32(next(4))
	info.TotalCoins = binary.BigEndian.Uint64(next(8))
	info.TotalCoinsVBC = binary.BigEndian.Uint64(next(8))
	copy(info.ParentHash[:], next(hash.HashLen))
	copy(info.TxHash[:], next(hash.HashLen))
	copy(info.AccountHash[:], next(hash.HashLen))
	info.ParentCloseTime = NetTime(binary.BigEndian.Uint32(next(4)))
	info.CloseTime = NetTime(binary.BigEndian.Uint32(next(4)))
	info.CloseTimeResolution = next(1)[0]
	info.CloseFlags = next(1)[0]

	info.Hash = info.ComputeHash()
	if info.Hash != expected {
		return nil, fmt.Errorf("ledger header hashes to %v, expected %v: %w", info.Hash, expected, ErrHashMismatch)
	}
	return info, nil
}
