package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourdb-org/yourdb/pkg/record"
)

func TestFilter_EmptyMatchesEverything(t *testing.T) {
	rec := record.New()
	ok, err := New().matches(rec)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFilter_EqScalarIsExactMatch(t *testing.T) {
	rec := record.New()
	rec.Set("color", record.StringValue("red"))

	ok, err := New().Eq("color", record.StringValue("red")).matches(rec)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = New().Eq("color", record.StringValue("blue")).matches(rec)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFilter_OperatorComparisons(t *testing.T) {
	rec := record.New()
	rec.Set("price", record.FloatValue(10))

	cases := []struct {
		op    Operator
		value float64
		want  bool
	}{
		{OpGt, 5, true}, {OpGt, 10, false},
		{OpGte, 10, true}, {OpLt, 10, false},
		{OpLte, 10, true}, {OpNe, 5, true}, {OpNe, 10, false},
		{OpEq, 10, true},
	}
	for _, c := range cases {
		ok, err := New().Where("price", c.op, record.FloatValue(c.value)).matches(rec)
		require.NoError(t, err)
		assert.Equal(t, c.want, ok, "op=%s value=%v", c.op, c.value)
	}
}

func TestFilter_ConjunctionAcrossFields(t *testing.T) {
	rec := record.New()
	rec.Set("color", record.StringValue("red"))
	rec.Set("price", record.FloatValue(10))

	f := New().Eq("color", record.StringValue("red")).Where("price", OpGt, record.FloatValue(5))
	ok, err := f.matches(rec)
	require.NoError(t, err)
	assert.True(t, ok)

	f2 := New().Eq("color", record.StringValue("red")).Where("price", OpGt, record.FloatValue(50))
	ok, err = f2.matches(rec)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFilter_MissingFieldNeverMatches(t *testing.T) {
	rec := record.New()
	ok, err := New().Eq("nonexistent", record.IntValue(1)).matches(rec)
	require.NoError(t, err)
	assert.False(t, ok)
}
