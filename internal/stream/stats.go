// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "time"

// Stats counts what a stream contained, for logging.
type Stats struct {
	Chunks int
	Bytes  int

	// Objects counts consumed embedded objects by kind.
	Objects   map[Kind]int
	Malformed int

	// Unterminated is set when the stream ended inside an object.
	Unterminated bool

	StartTime      time.Time
	FirstChunkTime time.Time
	EndTime        time.Time
}

func (s *Stats) recordChunk(n int) {
	now := time.Now()
	if s.StartTime.IsZero() {
		s.StartTime = now
	}
	if s.FirstChunkTime.IsZero() && n > 0 {
		s.FirstChunkTime = now
	}
	s.Chunks++
	s.Bytes += n
}

func (s *Stats) recordObject(k Kind) {
	if s.Objects == nil {
		s.Objects = make(map[Kind]int)
	}
	s.Objects[k]++
	if k == KindMalformed {
		s.Malformed++
	}
}

func (s *Stats) finish() {
	s.EndTime = time.Now()
	if s.StartTime.IsZero() {
		s.StartTime = s.EndTime
	}
}

// Duration is the time from the first chunk to the end of the stream.
func (s Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// Fields returns the stats as log details.
func (s Stats) Fields() map[string]interface{} {
	objects := make(map[string]int, len(s.Objects))
	for k, n := range s.Objects {
		objects[k.String()] = n
	}
	return map[string]interface{}{
		"chunks":       s.Chunks,
		"bytes":        s.Bytes,
		"objects":      objects,
		"malformed":    s.Malformed,
		"unterminated": s.Unterminated,
		"duration_ms":  s.Duration().Milliseconds(),
	}
}
