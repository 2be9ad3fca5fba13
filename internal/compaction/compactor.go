// Package compaction implements the Compactor of spec.md §4.7: an
// asynchronous rewrite of an entity's log segment into a fresh segment
// holding only the live set, safe to run concurrently with readers and
// writers. Adapted from the teacher's compaction/daemon.go and
// compaction/merger.go — same two-phase "merge into a staging file, then
// atomically hand it off" shape, retargeted from S3 partition merging onto
// a single local append-only segment.
package compaction

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/yourdb-org/yourdb/internal/codec"
	"github.com/yourdb-org/yourdb/internal/errs"
	"github.com/yourdb-org/yourdb/internal/log"
	"github.com/yourdb-org/yourdb/pkg/record"
)

// Source is what the Compactor needs from an entity engine. entity.Engine
// satisfies it; the dependency runs one way (entity imports compaction) so
// the interface lives here rather than importing entity, which would
// create a cycle.
type Source interface {
	// BeginSnapshot takes the live set and current schema version under the
	// write gate, then releases the gate before returning (spec.md §4.7
	// step 1). It returns the boundary log sequence number at snapshot
	// time: frames appended after this seq must be copied in step 3.
	BeginSnapshot() (records []*record.Record, schemaVersion int, seq uint64)

	// FinishCompaction reacquires the write gate, copies every frame in the
	// live segment with a sequence number greater than afterSeq onto the
	// staging segment at stagingPath, and atomically renames it over the
	// live segment (spec.md §4.7 steps 3-4).
	FinishCompaction(stagingPath string, afterSeq uint64) error

	// LogPath returns the filesystem path of the entity's live log segment,
	// so the compactor can place its staging file alongside it.
	LogPath() string
}

// Compactor runs the two-phase compaction procedure against a Source.
type Compactor struct{}

// New returns a ready Compactor. It carries no state: every compaction run
// is independent and driven entirely by its Source.
func New() *Compactor {
	return &Compactor{}
}

// Compact runs one full compaction cycle against src.
func (c *Compactor) Compact(src Source) error {
	records, schemaVersion, seq := src.BeginSnapshot()

	stagingPath := filepath.Join(filepath.Dir(src.LogPath()), fmt.Sprintf("data.log.%s.tmp", uuid.New().String()))
	staging, err := log.Open(stagingPath)
	if err != nil {
		return errs.IOError("open compaction staging segment", err)
	}

	if err := writeSnapshot(staging, records, schemaVersion); err != nil {
		staging.Close()
		os.Remove(stagingPath)
		return err
	}
	if err := staging.Close(); err != nil {
		os.Remove(stagingPath)
		return errs.IOError("close compaction staging segment", err)
	}

	if err := src.FinishCompaction(stagingPath, seq); err != nil {
		os.Remove(stagingPath)
		return err
	}
	return nil
}

// writeSnapshot writes the SNAPSHOT_MARK frame followed by one INSERT frame
// per record, all at schemaVersion, per spec.md §4.2 ("emitted by the
// compactor as the first frame of a compacted segment to indicate 'no
// history precedes'") and §4.7 step 2 ("all at current version").
func writeSnapshot(seg *log.Segment, records []*record.Record, schemaVersion int) error {
	if _, err := seg.AppendNoSync(codec.OpSnapshotMark, nil); err != nil {
		return errs.IOError("write snapshot mark", err)
	}
	for _, rec := range records {
		rec.SetVersion(schemaVersion)
		payload, err := codec.EncodeInsert(rec)
		if err != nil {
			return errs.IOError("encode snapshot record", err)
		}
		if _, err := seg.AppendNoSync(codec.OpInsert, payload); err != nil {
			return errs.IOError("write snapshot record", err)
		}
	}
	return seg.Sync()
}
