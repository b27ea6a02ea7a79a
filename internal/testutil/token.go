package testutil

import (
	"fmt"
	"sync"
)

// SequenceTokens generates predictable correlation tokens ("op-1",
// "op-2", ...) so traces compare byte-for-byte against golden files.
//
// Thread-safe via internal mutex.
type SequenceTokens struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceTokens creates a generator with the given prefix.
func NewSequenceTokens(prefix string) *SequenceTokens {
	return &SequenceTokens{prefix: prefix}
}

// Generate returns the next token in the sequence.
func (g *SequenceTokens) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
