package operation

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/vmihailenco/msgpack"

	"github.com/vbc-network/vbcd/module/irrecoverable"
	"github.com/vbc-network/vbcd/storage"
)

func insert(key []byte, val interface{}) func(pebble.Writer) error {
	return func(w pebble.Writer) error {
		value, err := msgpack.Marshal(val)
		if err != nil {
			return irrecoverable.NewExceptionf("failed to encode value: %w", err)
		}

		err = w.Set(key, value, nil)
		if err != nil {
			return irrecoverable.NewExceptionf("failed to store data: %w", err)
		}

		return nil
	}
}

func retrieve(key []byte, sc interface{}) func(r pebble.Reader) error {
	return func(r pebble.Reader) error {
		val, closer, err := r.Get(key)
		if err != nil {
			return convertNotFoundError(err)
		}
		defer closer.Close()

		err = msgpack.Unmarshal(val, sc)
		if err != nil {
			return irrecoverable.NewExceptionf("failed to decode value: %w", err)
		}
		return nil
	}
}

func exists(key []byte, keyExists *bool) func(r pebble.Reader) error {
	return func(r pebble.Reader) error {
		_, closer, err := r.Get(key)
		if err != nil {
			if errors.Is(err, pebble.ErrNotFound) {
				*keyExists = false
				return nil
			}

			// exception while checking for the key
			return irrecoverable.NewExceptionf("could not load data: %w", err)
		}
		*keyExists = true
		defer closer.Close()
		return nil
	}
}

// iterate decodes every value stored under the prefix and passes it to handle.
func iterate(prefix []byte, create func() interface{}, handle func(key []byte, val interface{}) error) func(pebble.Reader) error {
	return func(r pebble.Reader) error {
		it, err := r.NewIter(&pebble.IterOptions{
			LowerBound: prefix,
			UpperBound: prefixUpperBound(prefix),
		})
		if err != nil {
			return fmt.Errorf("could not create iterator: %w", err)
		}
		defer it.Close()

		for valid := it.First(); valid; valid = it.Next() {
			val := create()
			err := msgpack.Unmarshal(it.Value(), val)
			if err != nil {
				return irrecoverable.NewExceptionf("failed to decode value: %w", err)
			}
			key := make([]byte, len(it.Key()))
			copy(key, it.Key())
			err = handle(key, val)
			if err != nil {
				return err
			}
		}
		return it.Error()
	}
}

// prefixUpperBound returns the smallest key greater than every key with the prefix.
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func convertNotFoundError(err error) error {
	if errors.Is(err, pebble.ErrNotFound) {
		return storage.ErrNotFound
	}
	return err
}
