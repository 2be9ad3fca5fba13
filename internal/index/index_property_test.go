package index

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/yourdb-org/yourdb/pkg/record"
)

var propertyColors = []string{"red", "green", "blue"}

func testSchemaForProperty() *record.Schema {
	s, _ := record.NewSchema("widgets", "id", map[string]record.Kind{
		"id":    record.KindInt,
		"color": record.KindString,
	}, []string{"color"})
	return s
}

func widgetForProperty(id int64, color string) *record.Record {
	r := record.New()
	r.Set("id", record.IntValue(id))
	r.Set("color", record.StringValue(color))
	return r
}

func recordPK(id int64) record.Value { return record.IntValue(id) }

func stringPK(s string) record.Value { return record.StringValue(s) }

// TestProperty_IndexCoherence validates spec.md §8 property 2: for every
// live record R and indexed field f, the secondary map contains R.pk under
// bucket R[f]; conversely every pk in a secondary bucket refers to a live
// record whose field equals the bucket key.
func TestProperty_IndexCoherence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("index buckets stay coherent with the live set", prop.ForAll(
		func(ops []int) bool {
			s := New(testSchemaForProperty())
			live := map[int64]string{} // id -> color, for ids currently inserted

			for _, n := range ops {
				op := n % 3
				id := int64((n / 3) % 10)
				color := propertyColors[(n/30)%len(propertyColors)]

				switch op {
				case 0, 2: // insert (weighted 2/3 of the space)
					if _, exists := live[id]; exists {
						continue
					}
					if err := s.Insert(widgetForProperty(id, color)); err != nil {
						return false
					}
					live[id] = color
				case 1: // remove
					if _, exists := live[id]; !exists {
						continue
					}
					if _, err := s.Remove(recordPK(id)); err != nil {
						return false
					}
					delete(live, id)
				}
			}

			return coherent(s, live)
		},
		gen.SliceOf(gen.IntRange(0, 89)),
	))

	properties.TestingRun(t)
}

func coherent(s *Set, live map[int64]string) bool {
	if s.Len() != len(live) {
		return false
	}
	for id, color := range live {
		rec, ok := s.Get(recordPK(id))
		if !ok {
			return false
		}
		v, ok := rec.Get("color")
		if !ok {
			return false
		}
		got, _ := v.String()
		if got != color {
			return false
		}
		bucket := s.Lookup("color", v)
		found := false
		for _, pk := range bucket {
			if pk == recordPK(id).CanonicalKey() {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	for _, color := range propertyColors {
		for _, pk := range s.Lookup("color", stringPK(color)) {
			matched := false
			for id, c := range live {
				if c == color && recordPK(id).CanonicalKey() == pk {
					matched = true
				}
			}
			if !matched {
				return false
			}
		}
	}
	return true
}
