package ledger

import (
	"time"
)

// networkEpoch is the zero of the network clock, 2000-01-01T00:00:00Z.
const networkEpoch = 946684800

// NetTime is a point in time as seconds since the network epoch. Ledger close times are
// expressed in NetTime and rounded to the ledger's close time resolution.
type NetTime uint32

// NetTimeFrom converts a wall clock time. Times before the network epoch map to zero.
func NetTimeFrom(t time.Time) NetTime {
	secs := t.Unix() - networkEpoch
	if secs < 0 {
		return 0
	}
	return NetTime(secs)
}

// Time converts the network time back to UTC wall clock time.
func (t NetTime) Time() time.Time {
	return time.Unix(int64(t)+networkEpoch, 0).UTC()
}

// RoundTo rounds the time to the nearest multiple of resolution seconds.
func (t NetTime) RoundTo(resolution uint8) NetTime {
	if resolution == 0 || t == 0 {
		return t
	}
	r := NetTime(resolution)
	return (t + r/2) / r * r
}

func (t NetTime) String() string {
	return t.Time().Format(time.RFC3339)
}
