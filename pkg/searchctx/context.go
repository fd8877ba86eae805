// Package searchctx implements the Search Context (C6): the per-query
// mutable state threaded through evaluation — options, an error
// buffer, and elapsed timings. Grounded on the teacher's
// pkg/scanner/conductor.Conductor run-scoped state struct, generalized
// from a narrative-extraction run to a single search call.
package searchctx

import (
	"time"

	"github.com/kittclouds/gokitt/internal/config"
)

// ErrorKind classifies an entry in a Context's error buffer.
type ErrorKind string

const (
	ErrKindParse              ErrorKind = "parse"
	ErrKindFtsUnavailable     ErrorKind = "fts_unavailable"
	ErrKindFtsQuery           ErrorKind = "fts_query"
	ErrKindDecryption         ErrorKind = "decryption"
	ErrKindRegexTimeout       ErrorKind = "regex_timeout"
	ErrKindTimeout            ErrorKind = "timeout"
	ErrKindProtectedRequired  ErrorKind = "protected_session_required"
	ErrKindDanglingReference  ErrorKind = "dangling_reference"
)

// ErrorEntry is one recoverable failure observed during evaluation,
// attached to the context rather than returned, per §7's "logged and
// the leaf falls back" propagation policy.
type ErrorEntry struct {
	Kind    ErrorKind
	Message string
}

// Context carries one search call's options and mutable state. It is
// not safe for concurrent use by multiple evaluations; construct one
// per call.
type Context struct {
	FastSearch           bool
	IncludeArchivedNotes bool
	AncestorNoteID       string
	FuzzyAttributeSearch bool
	Debug                bool
	Limit                int
	Offset               int

	Deadline time.Time // zero value means no deadline

	Config config.Config

	errors []ErrorEntry
	start  time.Time

	// NodeCandidateCounts records, in debug mode, how many candidates
	// each evaluated node kind saw, keyed by a caller-supplied label.
	NodeCandidateCounts map[string]int
}

// New constructs a Context with the clock started and compiled-in
// config defaults.
func New() *Context {
	return &Context{start: time.Now(), Config: config.Default()}
}

// NewFromConfig constructs a Context carrying cfg, per §4.6's "NEW:
// Engine configuration" wiring.
func NewFromConfig(cfg config.Config) *Context {
	return &Context{start: time.Now(), Config: cfg}
}

// AddError appends an entry to the error buffer; evaluation continues
// regardless (§7: "the engine never crashes the host process").
func (c *Context) AddError(kind ErrorKind, message string) {
	c.errors = append(c.errors, ErrorEntry{Kind: kind, Message: message})
}

// Errors returns the accumulated error buffer.
func (c *Context) Errors() []ErrorEntry {
	return c.errors
}

// Elapsed returns time since the context was created.
func (c *Context) Elapsed() time.Duration {
	return time.Since(c.start)
}

// DeadlineExceeded reports whether the query's cooperative deadline,
// if any, has passed. Evaluators call this at each node entry (§5).
func (c *Context) DeadlineExceeded() bool {
	return !c.Deadline.IsZero() && time.Now().After(c.Deadline)
}

// RecordCandidates stores a debug-mode candidate count for node label.
func (c *Context) RecordCandidates(label string, count int) {
	if !c.Debug {
		return
	}
	if c.NodeCandidateCounts == nil {
		c.NodeCandidateCounts = make(map[string]int)
	}
	c.NodeCandidateCounts[label] = count
}
