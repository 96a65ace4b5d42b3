package ledger

import (
	"fmt"
)

// Variable length prefixes encode blob lengths in one to three bytes:
//
//	0      .. 192     one byte
//	193    .. 12480   two bytes
//	12481  .. 918744  three bytes
const (
	maxVLOneByte   = 192
	maxVLTwoBytes  = 12480
	maxVLThreeByte = 918744
)

// AppendVL appends the length prefixed blob to buf.
func AppendVL(buf []byte, blob []byte) ([]byte, error) {
	n := len(blob)
	switch {
	case n <= maxVLOneByte:
		buf = append(buf, byte(n))
	case n <= maxVLTwoBytes:
		n -= maxVLOneByte + 1
		buf = append(buf, byte(193+(n>>8)), byte(n&0xff))
	case n <= maxVLThreeByte:
		n -= maxVLTwoBytes + 1
		buf = append(buf, byte(241+(n>>16)), byte((n>>8)&0xff), byte(n&0xff))
	default:
		return nil, fmt.Errorf("blob of %d bytes exceeds the maximum variable length", n)
	}
	return append(buf, blob...), nil
}

// ReadVL reads one length prefixed blob from data and returns it with the remaining bytes.
func ReadVL(data []byte) ([]byte, []byte, error) {
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("missing variable length prefix")
	}
	b0 := int(data[0])
	var n, header int
	switch {
	case b0 <= maxVLOneByte:
		n, header = b0, 1
	case b0 <= 240:
		if len(data) < 2 {
			return nil, nil, fmt.Errorf("truncated variable length prefix")
		}
		n, header = maxVLOneByte+1+((b0-193)<<8)+int(data[1]), 2
	case b0 <= 254:
		if len(data) < 3 {
			return nil, nil, fmt.Errorf("truncated variable length prefix")
		}
		n, header = maxVLTwoBytes+1+((b0-241)<<16)+(int(data[1])<<8)+int(data[2]), 3
	default:
		return nil, nil, fmt.Errorf("invalid variable length prefix 0x%x", b0)
	}
	if len(data) < header+n {
		return nil, nil, fmt.Errorf("blob needs %d bytes, only %d available", n, len(data)-header)
	}
	return data[header : header+n], data[header+n:], nil
}
