package config

import (
	"fmt"
	"time"

	"github.com/pbnjay/memory"
)

// NodeSize is the size class of the machine the node runs on. It scales caches, database
// page caches, the sweep interval and the number of background workers.
type NodeSize int

const (
	SizeTiny NodeSize = iota
	SizeSmall
	SizeMedium
	SizeLarge
	SizeHuge
)

const (
	nodeSizeAuto = "auto"
	gib          = uint64(1024 * 1024 * 1024)
)

var nodeSizeNames = []string{"tiny", "small", "medium", "large", "huge"}

func (s NodeSize) String() string {
	if s < SizeTiny || s > SizeHuge {
		return fmt.Sprintf("unknown(%d)", int(s))
	}
	return nodeSizeNames[s]
}

// ParseNodeSize converts a configured size name. "auto" picks the size from the total amount
// of physical memory.
func ParseNodeSize(name string) (NodeSize, error) {
	if name == nodeSizeAuto {
		return SizeForMemory(memory.TotalMemory()), nil
	}
	for i, n := range nodeSizeNames {
		if n == name {
			return NodeSize(i), nil
		}
	}
	return SizeTiny, fmt.Errorf("unknown node size %q", name)
}

// SizeForMemory maps the total memory in bytes to a node size. Zero means the memory size is
// unknown, which selects the smallest class.
func SizeForMemory(total uint64) NodeSize {
	switch {
	case total == 0:
		return SizeTiny
	case total < 4*gib:
		return SizeTiny
	case total < 8*gib:
		return SizeSmall
	case total < 16*gib:
		return SizeMedium
	case total < 32*gib:
		return SizeLarge
	default:
		return SizeHuge
	}
}

// SizedItems are the tunables derived from the node size.
type SizedItems struct {
	SweepInterval time.Duration
	LedgerFetch   int

	NodeCacheSize int
	NodeCacheAge  time.Duration
	TreeCacheSize int
	TreeCacheAge  time.Duration
	SLECacheSize  int
	SLECacheAge   time.Duration
	LedgerSize    int
	LedgerAge     time.Duration

	// page cache sizes of the databases in KiB
	HashNodeDBCache int
	TxnDBCache      int
	LgrDBCache      int

	Workers int
}

// SizeTable is indexed by NodeSize.
var SizeTable = [...]SizedItems{
	SizeTiny: {
		SweepInterval: 10 * time.Second, LedgerFetch: 2,
		NodeCacheSize: 16384, NodeCacheAge: 60 * time.Second,
		TreeCacheSize: 128000, TreeCacheAge: 30 * time.Second,
		SLECacheSize: 4096, SLECacheAge: 30 * time.Second,
		LedgerSize: 32, LedgerAge: 30 * time.Second,
		HashNodeDBCache: 4 * 1024, TxnDBCache: 4 * 1024, LgrDBCache: 4 * 1024,
		Workers: 1,
	},
	SizeSmall: {
		SweepInterval: 30 * time.Second, LedgerFetch: 2,
		NodeCacheSize: 32768, NodeCacheAge: 90 * time.Second,
		TreeCacheSize: 256000, TreeCacheAge: 60 * time.Second,
		SLECacheSize: 8192, SLECacheAge: 60 * time.Second,
		LedgerSize: 128, LedgerAge: 90 * time.Second,
		HashNodeDBCache: 12 * 1024, TxnDBCache: 12 * 1024, LgrDBCache: 8 * 1024,
		Workers: 1,
	},
	SizeMedium: {
		SweepInterval: 60 * time.Second, LedgerFetch: 3,
		NodeCacheSize: 131072, NodeCacheAge: 120 * time.Second,
		TreeCacheSize: 512000, TreeCacheAge: 90 * time.Second,
		SLECacheSize: 16384, SLECacheAge: 90 * time.Second,
		LedgerSize: 256, LedgerAge: 180 * time.Second,
		HashNodeDBCache: 24 * 1024, TxnDBCache: 24 * 1024, LgrDBCache: 16 * 1024,
		Workers: 2,
	},
	SizeLarge: {
		SweepInterval: 90 * time.Second, LedgerFetch: 3,
		NodeCacheSize: 262144, NodeCacheAge: 900 * time.Second,
		TreeCacheSize: 768000, TreeCacheAge: 120 * time.Second,
		SLECacheSize: 65536, SLECacheAge: 120 * time.Second,
		LedgerSize: 384, LedgerAge: 240 * time.Second,
		HashNodeDBCache: 64 * 1024, TxnDBCache: 64 * 1024, LgrDBCache: 32 * 1024,
		Workers: 2,
	},
	SizeHuge: {
		SweepInterval: 120 * time.Second, LedgerFetch: 3,
		NodeCacheSize: 1048576, NodeCacheAge: 1800 * time.Second,
		TreeCacheSize: 2048000, TreeCacheAge: 900 * time.Second,
		SLECacheSize: 262144, SLECacheAge: 300 * time.Second,
		LedgerSize: 768, LedgerAge: 900 * time.Second,
		HashNodeDBCache: 128 * 1024, TxnDBCache: 128 * 1024, LgrDBCache: 128 * 1024,
		Workers: 2,
	},
}

// Items returns the tunables of the size.
func (s NodeSize) Items() SizedItems {
	if s < SizeTiny {
		s = SizeTiny
	}
	if s > SizeHuge {
		s = SizeHuge
	}
	return SizeTable[s]
}
