package testutil

import (
	"fmt"
	"sync"
)

// ScriptedIDs hands out a fixed list of ids, then falls back to
// prefix-1, prefix-2, ... once the list is exhausted.
//
// Scenario files use it to pin the ids of records they refer to later:
//
//	ids: [cust-1, cust-2]
//
// Thread-safety: ScriptedIDs is safe for concurrent use via internal mutex.
type ScriptedIDs struct {
	mu     sync.Mutex
	script []string
	prefix string
	next   int
	n      int
}

// NewScriptedIDs creates a generator. An empty prefix becomes "id".
func NewScriptedIDs(prefix string, script ...string) *ScriptedIDs {
	if prefix == "" {
		prefix = "id"
	}
	return &ScriptedIDs{script: append([]string(nil), script...), prefix: prefix}
}

// Generate returns the next id. Implements engine.IDGenerator.
func (g *ScriptedIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.next < len(g.script) {
		id := g.script[g.next]
		g.next++
		return id
	}
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Remaining reports how many scripted ids have not been handed out.
func (g *ScriptedIDs) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.script) - g.next
}
