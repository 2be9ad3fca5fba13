package entity

import (
	"fmt"

	"github.com/yourdb-org/yourdb/internal/codec"
	"github.com/yourdb-org/yourdb/internal/compaction"
	"github.com/yourdb-org/yourdb/internal/config"
	"github.com/yourdb-org/yourdb/internal/errs"
	"github.com/yourdb-org/yourdb/internal/gate"
	"github.com/yourdb-org/yourdb/internal/index"
	"github.com/yourdb-org/yourdb/internal/log"
	"github.com/yourdb-org/yourdb/internal/observability"
	"github.com/yourdb-org/yourdb/pkg/record"
)

// Engine is the per-entity storage engine: schema-validated CRUD and query
// operations backed by a log segment and an in-memory index set, gated for
// writer-preference concurrent access (spec.md §4.6).
type Engine struct {
	schema *record.Schema
	gate   *gate.Gate
	seg    *log.Segment
	idx    *index.Set
	stats  *observability.QueryStats
}

// Open opens (creating if absent) the log segment at path, replays it to
// rebuild the Index Set, and returns a ready Engine. Replay applies the
// schema's lazy upgrade chain to any record whose stored version trails
// the schema's current version; a record whose chain is missing a step
// fails the open with errs.UpgradeChainBroken. A non-trailing frame that
// fails to decode fails the open with errs.CorruptFrame; a truncated
// trailing frame is tolerated silently by the log package itself.
func Open(path string, schema *record.Schema) (*Engine, error) {
	seg, err := log.Open(path)
	if err != nil {
		return nil, errs.IOError("open log segment", err)
	}

	e := &Engine{
		schema: schema,
		gate:   gate.New(),
		seg:    seg,
		idx:    index.New(schema),
		stats:  observability.NewQueryStats(100),
	}

	if err := e.replay(); err != nil {
		seg.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) replay() error {
	return e.seg.Iterate(func(fr log.Frame) error {
		switch fr.Op {
		case codec.OpInsert:
			rec, err := codec.DecodeInsert(fr.Payload)
			if err != nil {
				return errs.CorruptFrame("replay insert frame", err)
			}
			upgraded, err := e.schema.Upgrade(rec)
			if err != nil {
				return errs.UpgradeChainBroken(rec.Version())
			}
			if err := record.Validate(upgraded, e.schema); err != nil {
				return errs.CorruptFrame("replayed record fails validation", err)
			}
			// Replay is idempotent per spec.md §8 property 4: a record
			// already present for this pk is simply replaced, matching what
			// re-running the same log would produce.
			pkVal, _ := upgraded.Get(e.schema.PrimaryKey)
			if _, exists := e.idx.Get(pkVal); exists {
				if _, err := e.idx.Remove(pkVal); err != nil {
					return err
				}
			}
			return e.idx.Insert(upgraded)
		case codec.OpDelete:
			pk, err := codec.DecodeDelete(fr.Payload)
			if err != nil {
				return errs.CorruptFrame("replay delete frame", err)
			}
			if _, exists := e.idx.Get(pk); exists {
				if _, err := e.idx.Remove(pk); err != nil {
					return err
				}
			}
			return nil
		case codec.OpSnapshotMark:
			return nil
		default:
			return errs.CorruptFrame(fmt.Sprintf("unknown op tag %v", fr.Op), nil)
		}
	})
}

// Insert validates rec against the current schema, assigns the current
// schema version, and durably appends it. It fails with
// errs.DuplicatePrimaryKey if the pk is already live, without touching the
// log (spec.md §4.6).
func (e *Engine) Insert(rec *record.Record) error {
	e.gate.WriteEnter()
	defer e.gate.WriteExit()

	if err := record.Validate(rec, e.schema); err != nil {
		return errs.Wrap(errs.CategoryValidation, errs.CodeSchemaViolation, "insert validation", err)
	}
	pkVal, _ := rec.Get(e.schema.PrimaryKey)
	if _, exists := e.idx.Get(pkVal); exists {
		return errs.DuplicatePrimaryKey(pkVal.CanonicalKey())
	}

	toStore := rec.Clone()
	toStore.SetVersion(e.schema.Version())

	payload, err := codec.EncodeInsert(toStore)
	if err != nil {
		return errs.IOError("encode insert", err)
	}
	if _, err := e.seg.Append(codec.OpInsert, payload); err != nil {
		return errs.IOError("append insert frame", err)
	}
	return e.idx.Insert(toStore)
}

// InsertMany inserts several records as one batch, syncing the log once at
// the end instead of once per record (supplemented from the original
// implementation's insert_parallel). It validates and appends records in
// order; the first failure aborts the remainder. Already-appended records
// are not rolled back. Returns the number of records successfully
// inserted.
func (e *Engine) InsertMany(recs []*record.Record) (int, error) {
	e.gate.WriteEnter()
	defer e.gate.WriteExit()

	inserted := 0
	var firstErr error
	for _, rec := range recs {
		if err := record.Validate(rec, e.schema); err != nil {
			firstErr = errs.Wrap(errs.CategoryValidation, errs.CodeSchemaViolation, "insert validation", err)
			break
		}
		pkVal, _ := rec.Get(e.schema.PrimaryKey)
		if _, exists := e.idx.Get(pkVal); exists {
			firstErr = errs.DuplicatePrimaryKey(pkVal.CanonicalKey())
			break
		}

		toStore := rec.Clone()
		toStore.SetVersion(e.schema.Version())

		payload, err := codec.EncodeInsert(toStore)
		if err != nil {
			firstErr = errs.IOError("encode insert", err)
			break
		}
		if _, err := e.seg.AppendNoSync(codec.OpInsert, payload); err != nil {
			firstErr = errs.IOError("append insert frame", err)
			break
		}
		if err := e.idx.Insert(toStore); err != nil {
			firstErr = err
			break
		}
		inserted++
	}

	if syncErr := e.seg.Sync(); syncErr != nil && firstErr == nil {
		firstErr = errs.IOError("sync after insert batch", syncErr)
	}
	return inserted, firstErr
}

// Delete resolves filter and removes every match, durably logging one
// DELETE frame per match with a single trailing sync. Returns the count
// removed.
func (e *Engine) Delete(filter *Filter) (int, error) {
	e.gate.WriteEnter()
	defer e.gate.WriteExit()

	result, err := plan(e.schema, e.idx, filter)
	if err != nil {
		return 0, e.wrapPlanErr(err)
	}

	count := 0
	var firstErr error
	for _, rec := range result.records {
		pkVal, _ := rec.Get(e.schema.PrimaryKey)
		payload, err := codec.EncodeDelete(pkVal)
		if err != nil {
			firstErr = errs.IOError("encode delete", err)
			break
		}
		if _, err := e.seg.AppendNoSync(codec.OpDelete, payload); err != nil {
			firstErr = errs.IOError("append delete frame", err)
			break
		}
		if _, err := e.idx.Remove(pkVal); err != nil {
			firstErr = err
			break
		}
		count++
	}

	if syncErr := e.seg.Sync(); syncErr != nil && firstErr == nil {
		firstErr = errs.IOError("sync after delete batch", syncErr)
	}
	return count, firstErr
}

// Transform maps a matched record to its replacement. The returned
// record's primary key must equal the original's.
type Transform func(*record.Record) (*record.Record, error)

// Update resolves filter, applies transform to a clone of each match,
// re-validates, and replaces it in place, appending one INSERT frame per
// match with a single trailing sync. A transform that changes the primary
// key fails with errs.PrimaryKeyImmutable. A mid-batch failure aborts the
// remainder; already-applied replacements are not rolled back (spec.md
// §4.6: "they are logically valid updates"). Returns the count updated.
func (e *Engine) Update(filter *Filter, transform Transform) (int, error) {
	e.gate.WriteEnter()
	defer e.gate.WriteExit()

	result, err := plan(e.schema, e.idx, filter)
	if err != nil {
		return 0, e.wrapPlanErr(err)
	}

	count := 0
	var firstErr error
	for _, rec := range result.records {
		origPK, _ := rec.Get(e.schema.PrimaryKey)

		updated, err := transform(rec.Clone())
		if err != nil {
			firstErr = err
			break
		}
		newPK, ok := updated.Get(e.schema.PrimaryKey)
		if !ok || !newPK.Equal(origPK) {
			firstErr = errs.PrimaryKeyImmutable(origPK.CanonicalKey())
			break
		}
		if err := record.Validate(updated, e.schema); err != nil {
			firstErr = errs.Wrap(errs.CategoryValidation, errs.CodeSchemaViolation, "update validation", err)
			break
		}
		updated.SetVersion(e.schema.Version())

		payload, err := codec.EncodeInsert(updated)
		if err != nil {
			firstErr = errs.IOError("encode update", err)
			break
		}
		if _, err := e.seg.AppendNoSync(codec.OpInsert, payload); err != nil {
			firstErr = errs.IOError("append update frame", err)
			break
		}
		if err := e.idx.Replace(origPK, updated); err != nil {
			firstErr = err
			break
		}
		count++
	}

	if syncErr := e.seg.Sync(); syncErr != nil && firstErr == nil {
		firstErr = errs.IOError("sync after update batch", syncErr)
	}
	return count, firstErr
}

// Select plans and executes filter, returning a snapshot of matching
// records. Each returned record is a clone, so callers cannot mutate the
// Index Set's held state (spec.md §4.4).
func (e *Engine) Select(filter *Filter) ([]*record.Record, error) {
	e.gate.ReadEnter()
	defer e.gate.ReadExit()

	result, err := plan(e.schema, e.idx, filter)
	if err != nil {
		return nil, e.wrapPlanErr(err)
	}

	e.stats.Record(observability.SelectStats{
		UsedIndex:    result.usedIndex,
		IndexField:   result.indexField,
		CandidateLen: result.candidateLen,
		ResultLen:    len(result.records),
	})

	out := make([]*record.Record, len(result.records))
	for i, rec := range result.records {
		out[i] = rec.Clone()
	}
	return out, nil
}

// Stats exposes the query-stats test hook (spec.md §8: "index accelerates
// query," observable via a test hook).
func (e *Engine) Stats() *observability.QueryStats {
	return e.stats
}

// ShouldOptimize reports whether the engine's current live-set-size to
// log-frame-count ratio has dropped below policy's configured threshold
// (spec.md §4.7). Callers that want automatic compaction poll this (e.g.
// after every N mutations, or on a timer) and call Optimize when it
// returns true; the engine itself does not schedule compaction.
func (e *Engine) ShouldOptimize(policy config.CompactionConfig) bool {
	if policy.TriggerRatio <= 0 {
		return false
	}
	frames := int(e.seg.Seq())
	if frames < policy.MinFrames {
		return false
	}
	return float64(e.idx.Len())/float64(frames) < policy.TriggerRatio
}

// Optimize runs one compaction cycle against the engine's own log segment
// (spec.md §4.7), rewriting it down to the live set. It is safe to call
// concurrently with Select, Insert, Update and Delete: the engine only
// holds its write gate for the brief snapshot (step 1) and tail-copy/rename
// (steps 3-4) phases, releasing it while the new segment is written.
func (e *Engine) Optimize() error {
	return compaction.New().Compact(e)
}

// BeginSnapshot implements compaction.Source.
func (e *Engine) BeginSnapshot() ([]*record.Record, int, uint64) {
	e.gate.WriteEnter()
	defer e.gate.WriteExit()

	live := e.idx.Scan()
	snapshot := make([]*record.Record, len(live))
	for i, rec := range live {
		snapshot[i] = rec.Clone()
	}
	return snapshot, e.schema.Version(), e.seg.Seq()
}

// FinishCompaction implements compaction.Source. It reacquires the write
// gate, copies every frame appended to the live segment after afterSeq onto
// the staging segment at stagingPath, and swaps it in.
func (e *Engine) FinishCompaction(stagingPath string, afterSeq uint64) error {
	e.gate.WriteEnter()
	defer e.gate.WriteExit()

	staging, err := log.Open(stagingPath)
	if err != nil {
		return errs.IOError("open staging segment for tail copy", err)
	}

	copyErr := e.seg.Iterate(func(fr log.Frame) error {
		if fr.Seq <= afterSeq {
			return nil
		}
		_, err := staging.AppendNoSync(fr.Op, fr.Payload)
		return err
	})
	if copyErr != nil {
		staging.Close()
		return errs.IOError("copy tail frames into staging segment", copyErr)
	}
	if err := staging.Sync(); err != nil {
		staging.Close()
		return errs.IOError("sync staging segment", err)
	}
	if err := staging.Close(); err != nil {
		return errs.IOError("close staging segment", err)
	}

	return e.seg.RenameAtomic(stagingPath)
}

// LogPath implements compaction.Source.
func (e *Engine) LogPath() string {
	return e.seg.Path()
}

// Len returns the number of live records, for tests.
func (e *Engine) Len() int {
	return e.idx.Len()
}

// Close releases the underlying log segment handle.
func (e *Engine) Close() error {
	return e.seg.Close()
}

func (e *Engine) wrapPlanErr(err error) error {
	return errs.Wrap(errs.CategoryValidation, errs.CodeKindMismatch, "filter operand kind mismatch", err)
}
