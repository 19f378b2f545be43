// Package auditlog is the durable, structured error trail for one
// extraction run: every ExtractionError collected during the run is
// appended as a JSON line via zerolog, buffered in memory, and flushed by
// the snapshot writer into statistics.json's error list and an optional
// run.log.jsonl audit file alongside the snapshot.
package auditlog

import (
	"bytes"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/R3E-Network/sfmc-inv2/internal/model"
)

// Entry is one recorded ExtractionError, flattened for JSON output.
type Entry struct {
	Time      time.Time                  `json:"time"`
	Code      model.ExtractionErrorCode  `json:"code"`
	Extractor string                     `json:"extractor,omitempty"`
	ItemID    string                     `json:"itemId,omitempty"`
	Message   string                     `json:"message"`
}

// Recorder accumulates ExtractionErrors as zerolog JSON lines in memory for
// the duration of a run.
type Recorder struct {
	mu  sync.Mutex
	buf bytes.Buffer
	log zerolog.Logger

	entries []Entry
}

// New constructs a Recorder. Nothing is written to disk until Flush.
func New() *Recorder {
	r := &Recorder{}
	r.log = zerolog.New(&r.buf).With().Timestamp().Logger()
	return r
}

// Record appends one ExtractionError to the in-memory audit trail.
func (r *Recorder) Record(err *model.ExtractionError) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.Log().
		Str("code", string(err.Code)).
		Str("extractor", err.Extractor).
		Str("itemId", err.ItemID).
		Str("message", err.Message).
		Send()

	r.entries = append(r.entries, Entry{
		Time:      time.Now(),
		Code:      err.Code,
		Extractor: err.Extractor,
		ItemID:    err.ItemID,
		Message:   err.Message,
	})
}

// RecordAll records every error produced by an extractor's result.
func (r *Recorder) RecordAll(errs []*model.ExtractionError) {
	for _, e := range errs {
		r.Record(e)
	}
}

// Entries returns a copy of the accumulated entries, for statistics.json.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// JSONLines returns the raw newline-delimited JSON the recorder has
// accumulated, suitable for writing verbatim to run.log.jsonl.
func (r *Recorder) JSONLines() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]byte, r.buf.Len())
	copy(out, r.buf.Bytes())
	return out
}

// Len reports how many entries have been recorded so far.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
