package testfixtures

import (
	"fmt"
	"sync"
)

// IDGenerator produces deterministic document ids for tests, standing in
// for the uuid generator used in production.
type IDGenerator struct {
	mu      sync.Mutex
	prefix  string
	counter uint64
}

// NewIDGenerator constructs a generator that yields "<prefix>-<n>". When
// prefix is empty, "id" is used.
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

// Next returns the next identifier in the sequence.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("%s-%d", g.prefix, g.counter)
}

// NextFunc exposes Next as a function suitable for dependency injection.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// Reset restarts the sequence, optionally under a new prefix.
func (g *IDGenerator) Reset(prefix string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if prefix != "" {
		g.prefix = prefix
	}
	g.counter = 0
}

// Issued reports how many identifiers have been handed out since the last
// reset.
func (g *IDGenerator) Issued() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return int(g.counter)
}
