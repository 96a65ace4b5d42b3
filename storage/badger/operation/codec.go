package operation

import (
	"errors"
	"fmt"

	"github.com/golang/snappy"
	"github.com/vmihailenco/msgpack"

	"github.com/vbc-network/vbcd/module/irrecoverable"
)

// ErrCorruptValue is returned for a stored value which is not valid snappy data.
var ErrCorruptValue = errors.New("corrupt stored value")

// encode serializes v with msgpack and snappy compresses the result. Encoding failures are
// programming errors and returned as exceptions.
func encode(v interface{}) ([]byte, error) {
	raw, err := msgpack.Marshal(v)
	if err != nil {
		return nil, irrecoverable.NewExceptionf("could not encode %T: %w", v, err)
	}
	return snappy.Encode(nil, raw), nil
}

// decode is the inverse of encode. v must be a pointer.
func decode(data []byte, v interface{}) error {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrCorruptValue, err)
	}
	err = msgpack.Unmarshal(raw, v)
	if err != nil {
		return irrecoverable.NewExceptionf("could not decode %T: %w", v, err)
	}
	return nil
}
