// Package log implements the append-only log segment of spec.md §4.3: a
// single file of length-prefixed, tagged frames, iterable for replay, with
// flush-then-fsync durability and atomic rename for compaction handoff.
// Modeled on the teacher's internal/wal package (length-prefixed binary
// frames, one segment file, fsync on every append) with the wire format
// pinned to spec.md §6 instead of the teacher's own WAL entry shape.
package log

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/yourdb-org/yourdb/internal/codec"
)

// Frame is one decoded entry read back from a segment during replay.
type Frame struct {
	Seq     uint64
	Op      codec.OpTag
	Payload []byte
}

// Segment is an append-only file of framed operations. Appends are expected
// to be serialized by a caller-held write gate (spec.md §4.3: "Appends are
// serialized by the Gate, so no intra-segment locking is needed"); Segment
// still guards its own file handle with a mutex so Sync/Close/RenameAtomic
// can safely run concurrently with the owning entity's bookkeeping.
type Segment struct {
	path string
	file *os.File
	mu   sync.Mutex
	seq  uint64
}

// Open opens (creating if absent) the segment file at path and scans it to
// recover the next sequence number, truncating any partial trailing frame.
func Open(path string) (*Segment, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("log: open segment %s: %w", path, err)
	}
	s := &Segment{path: path, file: f}
	if err := s.recoverSeq(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// recoverSeq replays the segment once at open time purely to learn how many
// well-formed frames it already holds, so Append continues numbering from
// where a previous process left off. Bytes past the last well-formed frame
// (a truncated tail) are cut off so new appends start on a frame boundary.
func (s *Segment) recoverSeq() error {
	var valid int64
	if err := s.Iterate(func(fr Frame) error {
		s.seq = fr.Seq
		valid += 5 + int64(len(fr.Payload))
		return nil
	}); err != nil {
		return err
	}
	info, err := s.file.Stat()
	if err != nil {
		return fmt.Errorf("log: stat segment: %w", err)
	}
	if info.Size() > valid {
		if err := s.file.Truncate(valid); err != nil {
			return fmt.Errorf("log: truncate partial tail: %w", err)
		}
	}
	return nil
}

// Append writes one frame — [length:u32][op:u8][payload] — flushes, and
// fsyncs before returning, per spec.md §4.3's durability guarantee. It
// returns the frame's sequence number.
func (s *Segment) Append(op codec.OpTag, payload []byte) (uint64, error) {
	seq, err := s.AppendNoSync(op, payload)
	if err != nil {
		return 0, err
	}
	if err := s.Sync(); err != nil {
		return 0, err
	}
	return seq, nil
}

// AppendNoSync writes one frame without forcing a durable flush, for
// callers batching several frames under a single trailing Sync (spec.md
// §4.6: delete and update "sync once at end"). The caller is responsible
// for calling Sync before reporting success to its own caller.
func (s *Segment) AppendNoSync(op codec.OpTag, payload []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	length := uint32(1 + len(payload))
	header := make([]byte, 5)
	binary.LittleEndian.PutUint32(header[0:4], length)
	header[4] = byte(op)

	if _, err := s.file.Write(header); err != nil {
		return 0, fmt.Errorf("log: write frame header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := s.file.Write(payload); err != nil {
			return 0, fmt.Errorf("log: write frame payload: %w", err)
		}
	}

	s.seq++
	return s.seq, nil
}

// Sync forces a durable flush of anything buffered by the OS for this file.
// Append already syncs after every write; Sync exists for callers (the
// compactor) that want an explicit barrier without appending.
func (s *Segment) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Sync()
}

// Iterate replays every well-formed frame in order, invoking fn. A frame
// whose length prefix claims more bytes than remain in the file is a
// truncated tail — the result of a crash between the length write and the
// payload flush — and is silently discarded rather than surfaced as an
// error (spec.md §4.2, §7). Iterate does not hold the segment's write lock:
// callers that need a point-in-time view while writers are active should
// coordinate externally (the engine's gate).
func (s *Segment) Iterate(fn func(Frame) error) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("log: open for iteration: %w", err)
	}
	defer f.Close()

	var seq uint64
	header := make([]byte, 5)
	for {
		if _, err := io.ReadFull(f, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return fmt.Errorf("log: read frame header: %w", err)
		}
		length := binary.LittleEndian.Uint32(header[0:4])
		op := codec.OpTag(header[4])
		if length == 0 {
			return nil
		}
		payload := make([]byte, length-1)
		if _, err := io.ReadFull(f, payload); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				// Truncated tail: crash between length write and payload flush.
				return nil
			}
			return fmt.Errorf("log: read frame payload: %w", err)
		}
		seq++
		if err := fn(Frame{Seq: seq, Op: op, Payload: payload}); err != nil {
			return err
		}
	}
}

// Seq returns the sequence number of the most recently appended frame.
func (s *Segment) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// RenameAtomic atomically replaces this segment's file with the one at
// newPath (the compactor's staging file) and re-opens it, per spec.md §4.7
// step 4. On failure the existing segment is left untouched and remains
// authoritative.
//
// The new file's frame count almost always differs from the old file's
// append counter (that is the point of compaction), so s.seq is recounted
// against the new file rather than left as-is — otherwise the append
// counter would keep climbing from the old, larger value while Iterate's
// positional numbering restarts at 1 for the new file, and a second
// compaction's tail-copy step (which compares the two) would silently drop
// every frame appended since the rename.
func (s *Segment) RenameAtomic(newPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Rename(newPath, s.path); err != nil {
		return fmt.Errorf("log: atomic rename %s -> %s: %w", newPath, s.path, err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("log: close old segment handle: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("log: reopen segment after rename: %w", err)
	}
	s.file = f

	var seq uint64
	if err := s.Iterate(func(fr Frame) error { seq = fr.Seq; return nil }); err != nil {
		return fmt.Errorf("log: recount frames after rename: %w", err)
	}
	s.seq = seq
	return nil
}

// Close closes the underlying file handle.
func (s *Segment) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// Path returns the filesystem path of the segment.
func (s *Segment) Path() string { return s.path }
