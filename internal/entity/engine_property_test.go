package entity

import (
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/yourdb-org/yourdb/pkg/record"
)

// TestProperty_ReopenReproducesLiveSet validates spec.md §8 properties 1
// ("reopen reproduces live set") and 4 ("idempotent replay": re-deriving
// the live set from the log twice yields the same result), by driving a
// random sequence of insert/delete operations, closing, reopening twice in
// a row, and comparing the live sets each reopen produces.
func TestProperty_ReopenReproducesLiveSet(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("cold reopen reproduces the live set, twice over", prop.ForAll(
		func(ops []int) bool {
			schema := propertySchema()
			dir := t.TempDir()
			path := filepath.Join(dir, "data.log")

			e, err := Open(path, schema)
			if err != nil {
				return false
			}
			live := map[int64]bool{}
			for _, n := range ops {
				id := int64(n % 10)
				if n%3 == 0 {
					if !live[id] {
						if err := e.Insert(propertyRec(id)); err != nil {
							return false
						}
						live[id] = true
					}
				} else {
					if live[id] {
						if _, err := e.Delete(New().Eq("id", record.IntValue(id))); err != nil {
							return false
						}
						delete(live, id)
					}
				}
			}
			if err := e.Close(); err != nil {
				return false
			}

			first, err := Open(path, schema)
			if err != nil {
				return false
			}
			firstLive := liveIDs(t, first)
			if err := first.Close(); err != nil {
				return false
			}

			second, err := Open(path, schema)
			if err != nil {
				return false
			}
			secondLive := liveIDs(t, second)
			defer second.Close()

			if len(firstLive) != len(live) {
				return false
			}
			return setsEqual(firstLive, secondLive)
		},
		gen.SliceOfN(40, gen.IntRange(0, 29)),
	))

	properties.TestingRun(t)
}

func propertySchema() *record.Schema {
	s, _ := record.NewSchema("items", "id", map[string]record.Kind{"id": record.KindInt}, nil)
	return s
}

func propertyRec(id int64) *record.Record {
	r := record.New()
	r.Set("id", record.IntValue(id))
	return r
}

func liveIDs(t *testing.T, e *Engine) map[int64]bool {
	recs, err := e.Select(New())
	require.NoError(t, err)
	out := make(map[int64]bool, len(recs))
	for _, r := range recs {
		v, _ := r.Get("id")
		i, _ := v.Int()
		out[i] = true
	}
	return out
}

func setsEqual(a, b map[int64]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
