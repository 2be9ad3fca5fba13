package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSchema(t *testing.T) *Schema {
	s, err := NewSchema("widgets", "id", map[string]Kind{
		"id":   KindInt,
		"name": KindString,
	}, nil)
	require.NoError(t, err)
	return s
}

func TestSchema_PrimaryKeyMustBeDeclared(t *testing.T) {
	_, err := NewSchema("widgets", "missing", map[string]Kind{"id": KindInt}, nil)
	assert.Error(t, err)
}

func TestSchema_RegisterUpgrade_GaplessChain(t *testing.T) {
	s := newTestSchema(t)

	err := s.RegisterUpgrade(2, func(r *Record) (*Record, error) { return r, nil })
	assert.Error(t, err, "registering step 2 before step 1 must fail")

	err = s.RegisterUpgrade(1, func(r *Record) (*Record, error) {
		r.Set("nickname", StringValue("?"))
		return r, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Version())
}

func TestSchema_Upgrade_AppliesChainInMemory(t *testing.T) {
	s := newTestSchema(t)
	require.NoError(t, s.RegisterUpgrade(1, func(r *Record) (*Record, error) {
		name, _ := r.Get("name")
		n, _ := name.String()
		r.Set("nickname", StringValue(n+"!"))
		return r, nil
	}))

	old := NewWithVersion(1)
	old.Set("id", IntValue(1))
	old.Set("name", StringValue("a"))

	upgraded, err := s.Upgrade(old)
	require.NoError(t, err)
	assert.Equal(t, 2, upgraded.Version())
	nick, ok := upgraded.Get("nickname")
	require.True(t, ok)
	got, _ := nick.String()
	assert.Equal(t, "a!", got)

	// original record is untouched (lazy upgrade must not mutate the input)
	assert.Equal(t, 1, old.Version())
	_, hasNick := old.Get("nickname")
	assert.False(t, hasNick)
}

func TestSchema_Upgrade_BrokenChain(t *testing.T) {
	s := newTestSchema(t)
	s.version = 3 // simulate a schema bumped without registering every step

	old := NewWithVersion(1)
	old.Set("id", IntValue(1))
	old.Set("name", StringValue("a"))

	_, err := s.Upgrade(old)
	require.Error(t, err)
	var broken *UpgradeChainBrokenError
	assert.ErrorAs(t, err, &broken)
}

func TestSchema_IsIndexed(t *testing.T) {
	s, err := NewSchema("widgets", "id", map[string]Kind{
		"id": KindInt, "city": KindString,
	}, []string{"city"})
	require.NoError(t, err)

	assert.True(t, s.IsIndexed("id"))
	assert.True(t, s.IsIndexed("city"))
	assert.False(t, s.IsIndexed("name"))
}

func TestSchema_FieldOrder_PrimaryKeyFirst(t *testing.T) {
	s, err := NewSchema("widgets", "id", map[string]Kind{
		"id": KindInt, "zebra": KindString, "apple": KindString,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "apple", "zebra"}, s.FieldOrder())
}
