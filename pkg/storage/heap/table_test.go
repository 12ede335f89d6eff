package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dictengine/pkg/concurrency/transaction"
	"dictengine/pkg/primitives"
	"dictengine/pkg/types"
)

func newTx() *transaction.TransactionContext {
	return transaction.NewTransactionContext(transaction.NewTransactionID())
}

func row(vals ...int64) []types.Field {
	out := make([]types.Field, len(vals))
	for i, v := range vals {
		out[i] = types.NewIntField(v)
	}
	return out
}

func TestHeapTable_InsertUpdateDelete(t *testing.T) {
	h := NewHeapTable(primitives.NewObjectID(), 2)
	assert.True(t, h.IsEmpty())

	r1, err := h.Insert(nil, row(1, 10))
	require.NoError(t, err)
	r2, err := h.Insert(nil, row(2, 20))
	require.NoError(t, err)
	assert.NotEqual(t, r1, r2)
	assert.Equal(t, 2, h.RowCount())

	_, err = h.Insert(nil, row(1))
	assert.Error(t, err)

	require.NoError(t, h.Update(nil, r1, row(1, 11)))
	got, ok := h.Get(r1)
	require.True(t, ok)
	assert.Equal(t, "11", got[1].String())

	require.NoError(t, h.Delete(nil, r1))
	assert.Error(t, h.Delete(nil, r1))
	assert.Error(t, h.Update(nil, r1, row(1, 1)))

	rows := h.Scan()
	require.Len(t, rows, 1)
	assert.Equal(t, r2, rows[0].ID)
}

func TestHeapTable_RollbackRestoresOrder(t *testing.T) {
	h := NewHeapTable(primitives.NewObjectID(), 1)
	r1, _ := h.Insert(nil, row(1))
	r2, _ := h.Insert(nil, row(2))
	r3, _ := h.Insert(nil, row(3))

	tx := newTx()
	require.NoError(t, h.Delete(tx, r2))
	require.NoError(t, h.Update(tx, r3, row(30)))
	_, err := h.Insert(tx, row(4))
	require.NoError(t, err)

	require.NoError(t, tx.Rollback())
	rows := h.Scan()
	require.Len(t, rows, 3)
	assert.Equal(t, []primitives.RowID{r1, r2, r3}, []primitives.RowID{rows[0].ID, rows[1].ID, rows[2].ID})
	assert.Equal(t, "3", rows[2].Fields[0].String())
}

func TestHeapTable_ColumnSlots(t *testing.T) {
	h := NewHeapTable(primitives.NewObjectID(), 3)
	rid, _ := h.Insert(nil, row(1, 2, 3))

	tx := newTx()
	require.NoError(t, h.DropColumnSlot(tx, 1))
	assert.Equal(t, 2, h.Width())
	got, _ := h.Get(rid)
	assert.Equal(t, "1", got[0].String())
	assert.Equal(t, "3", got[1].String())

	h.AddColumnSlot(tx, func(primitives.RowID) types.Field { return types.NewIntField(9) })
	got, _ = h.Get(rid)
	assert.Len(t, got, 3)
	assert.Equal(t, "9", got[2].String())

	h.SetColumn(tx, 0, func(types.Field) types.Field { return types.NewIntField(0) })
	got, _ = h.Get(rid)
	assert.Equal(t, "0", got[0].String())

	assert.Error(t, h.DropColumnSlot(tx, 7))

	require.NoError(t, tx.Rollback())
	got, _ = h.Get(rid)
	assert.Equal(t, "1\t2\t3", got[0].String()+"\t"+got[1].String()+"\t"+got[2].String())
	assert.Equal(t, 3, h.Width())
}
