package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataType_CanWidenTo(t *testing.T) {
	tests := []struct {
		name   string
		from   DataType
		to     DataType
		widens bool
	}{
		{"varchar grows", Varchar(10), Varchar(20), true},
		{"varchar same", Varchar(10), Varchar(10), true},
		{"varchar shrinks", Varchar(20), Varchar(10), false},
		{"clob grows", Clob(10 * 1024), Clob(20 * 1024), true},
		{"int to bigint", Integer(), BigInt(), true},
		{"bigint to int", BigInt(), Integer(), false},
		{"varchar to clob", Varchar(10), Clob(10), false},
		{"nullability ignored", Varchar(5).NotNull(), Varchar(6), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.widens, tt.from.CanWidenTo(tt.to))
		})
	}
}

func TestDataType_StringAndValidate(t *testing.T) {
	assert.Equal(t, "VARCHAR(10) NOT NULL", Varchar(10).NotNull().String())
	assert.Equal(t, "INTEGER", Integer().String())

	assert.NoError(t, Clob(1).Validate())
	assert.Error(t, Varchar(0).Validate())
	assert.Error(t, DataType{Base: IntType, Length: 4}.Validate())
	assert.Error(t, DataType{Base: Type(99)}.Validate())
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("varchar")
	require.NoError(t, err)
	assert.Equal(t, VarcharType, typ)

	_, err = ParseType("blob")
	assert.Error(t, err)
}

func TestCoerce(t *testing.T) {
	f, err := Coerce(7, Integer())
	require.NoError(t, err)
	assert.Equal(t, int64(7), f.Native())
	assert.Equal(t, IntType, f.Type())

	f, err = Coerce(int64(1)<<40, BigInt())
	require.NoError(t, err)
	assert.Equal(t, BigIntType, f.Type())

	_, err = Coerce(int64(1)<<40, Integer())
	assert.Error(t, err)

	f, err = Coerce(nil, Varchar(3))
	require.NoError(t, err)
	assert.True(t, f.IsNull())
	assert.Equal(t, VarcharType, f.Type())

	_, err = Coerce("abcd", Varchar(3))
	assert.Error(t, err, "overlong values are rejected")

	f, err = Coerce(NewIntField(3), Double())
	require.NoError(t, err)
	assert.Equal(t, 3.0, f.Native())

	_, err = Coerce("x", Boolean())
	assert.Error(t, err)

	_, err = Coerce(2.5, Integer())
	assert.Error(t, err)
}

func TestFieldCompareAndKeys(t *testing.T) {
	c, err := NewIntField(1).Compare(NewFloatField(1.5))
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	_, err = NewStringField("a").Compare(NewIntField(1))
	assert.Error(t, err)

	assert.False(t, NewNull(IntType).Equals(NewNull(IntType)))
	assert.True(t, AnyNull([]Field{NewIntField(1), NewNull(IntType)}))
	assert.False(t, AnyNull([]Field{NewIntField(1)}))

	k1 := KeyOf([]Field{NewIntField(1), NewStringField("x")})
	k2 := KeyOf([]Field{NewBigIntField(1), NewStringField("x")})
	k3 := KeyOf([]Field{NewStringField("1"), NewStringField("x")})
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Equal(t, NewStringField("x").Hash(), NewClobField("x").Hash())
}
