// Package pool provides object pooling for the hot per-note id slices
// the evaluator allocates while walking ScopeExpr relations (parents,
// children, ancestors, relation targets) across every note in a
// candidate set.
package pool

import "sync"

var stringSlicePool = sync.Pool{
	New: func() interface{} {
		s := make([]string, 0, 16)
		return &s
	},
}

// GetStringSlice returns a zero-length []string ready for append.
func GetStringSlice() []string {
	p := stringSlicePool.Get().(*[]string)
	return (*p)[:0]
}

// PutStringSlice returns s to the pool. Callers must not use s after
// calling PutStringSlice.
func PutStringSlice(s []string) {
	s = s[:0]
	stringSlicePool.Put(&s)
}
