package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbc-network/vbcd/ledger"
	"github.com/vbc-network/vbcd/utils/unittest"
)

func TestVariableLength(t *testing.T) {
	for _, size := range []int{0, 1, 192, 193, 12480, 12481, 918744} {
		blob := unittest.RandomBytes(size)
		encoded, err := ledger.AppendVL(nil, blob)
		require.NoError(t, err)
		encoded = append(encoded, 0xAA)

		decoded, rest, err := ledger.ReadVL(encoded)
		require.NoError(t, err, size)
		assert.Equal(t, blob, decoded, size)
		assert.Equal(t, []byte{0xAA}, rest, size)
	}

	_, err := ledger.AppendVL(nil, make([]byte, 918745))
	assert.Error(t, err)

	_, _, err = ledger.ReadVL([]byte{5, 1, 2})
	assert.Error(t, err)
}

func TestTxWithMeta(t *testing.T) {
	tx, err := ledger.NewTransaction([]byte(`{ "TransactionType": "Payment", "Amount": "10" }`))
	require.NoError(t, err)
	assert.Equal(t, `{"Amount":"10","TransactionType":"Payment"}`, string(tx.Blob))

	data, err := ledger.EncodeTxWithMeta(tx, &ledger.Meta{TransactionIndex: 4, TransactionResult: "tesSUCCESS"})
	require.NoError(t, err)

	decoded, meta, err := ledger.DecodeTxWithMeta(data)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, decoded.ID)
	assert.Equal(t, uint32(4), meta.TransactionIndex)

	_, _, err = ledger.DecodeTxWithMeta(append(data, 1))
	assert.ErrorIs(t, err, ledger.ErrInvalidTransaction)

	_, err = ledger.NewTransaction([]byte(`{"Amount":"10"}`))
	assert.ErrorIs(t, err, ledger.ErrInvalidTransaction)
}
