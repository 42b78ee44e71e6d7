// Package sample holds decoded audio buffers and the named bank that
// patterns resolve against. Buffers are immutable once loaded; voices read
// them concurrently without synchronization.
package sample

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Sample is one decoded mono buffer.
type Sample struct {
	Name string
	File string
	Rate int
	Data []float32
}

// Len returns the sample length in frames.
func (s *Sample) Len() int { return len(s.Data) }

// Bank maps names to their indexed variants. "bd" resolves to the first
// variant, "bd:3" to the fourth; indexes wrap around the variant count so a
// pattern never references out of range.
type Bank struct {
	mu    sync.RWMutex
	sets  map[string][]*Sample
	names []string
}

func NewBank() *Bank {
	return &Bank{sets: make(map[string][]*Sample)}
}

// Add appends a variant under name.
func (b *Bank) Add(name string, s *Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sets[name]; !ok {
		b.names = append(b.names, name)
		sort.Strings(b.names)
	}
	b.sets[name] = append(b.sets[name], s)
}

// Resolve looks up name:index. The index wraps modulo the variant count.
func (b *Bank) Resolve(name string, index int) (*Sample, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	set := b.sets[name]
	if len(set) == 0 {
		return nil, fmt.Errorf("unknown sample %q", name)
	}
	i := index % len(set)
	if i < 0 {
		i += len(set)
	}
	return set[i], nil
}

// ResolveRef resolves a "name" or "name:index" reference string.
func (b *Bank) ResolveRef(ref string) (*Sample, error) {
	name := ref
	index := 0
	if i := strings.IndexByte(ref, ':'); i >= 0 {
		name = ref[:i]
		if _, err := fmt.Sscanf(ref[i+1:], "%d", &index); err != nil {
			return nil, fmt.Errorf("bad sample reference %q: %w", ref, err)
		}
	}
	return b.Resolve(name, index)
}

// Names lists the loaded sample names, sorted.
func (b *Bank) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.names))
	copy(out, b.names)
	return out
}

// Count returns the number of variants under name.
func (b *Bank) Count(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sets[name])
}
