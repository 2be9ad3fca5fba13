package entity

import (
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/yourdb-org/yourdb/pkg/record"
)

// TestProperty_CompactionPreservesLiveSet validates spec.md §8 property 5:
// running the compactor never changes what Select observes, and a reopen
// against the rewritten segment reproduces the same live set again. ops
// encode a mix of inserts, deletes, and compaction triggers via modular
// arithmetic, mirroring the approach in engine_property_test.go.
func TestProperty_CompactionPreservesLiveSet(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("compaction never changes the live set, before or after reopen", prop.ForAll(
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
				switch n % 4 {
				case 0, 1:
					if !live[id] {
						if err := e.Insert(propertyRec(id)); err != nil {
							return false
						}
						live[id] = true
					}
				case 2:
					if live[id] {
						if _, err := e.Delete(New().Eq("id", record.IntValue(id))); err != nil {
							return false
						}
						delete(live, id)
					}
				case 3:
					if err := e.Optimize(); err != nil {
						return false
					}
				}
			}

			beforeClose := liveIDs(t, e)
			if !setsEqual(beforeClose, live) {
				return false
			}
			if err := e.Close(); err != nil {
				return false
			}

			reopened, err := Open(path, schema)
			if err != nil {
				return false
			}
			defer reopened.Close()
			return setsEqual(liveIDs(t, reopened), live)
		},
		gen.SliceOfN(60, gen.IntRange(0, 39)),
	))

	properties.TestingRun(t)
}
