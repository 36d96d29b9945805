// Package registry implements C5, the step-processor registry: processors
// register with a priority (lower runs first), ties broken by insertion
// order, and the registry is frozen at evaluation start for safe concurrent
// reads. Grounded on
// original_source/engine/web_engine/processors.py's StepProcessorRegistry.
package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/drwebengine/drwe/internal/evalctx"
	"github.com/drwebengine/drwe/internal/query"
)

// Processor handles one or more step kinds.
type Processor interface {
	// CanHandle reports whether this processor handles step.
	CanHandle(step query.Step) bool
	// Execute runs step against ec's open page and returns its
	// contribution(s) to the enclosing step list's result (§3.8).
	Execute(ctx context.Context, ec evalctx.Context, step query.Step) ([]Contribution, error)
	// Priority orders processors when more than one could handle a step;
	// lower values run first. Default is 100.
	Priority() int
}

// Contribution mirrors recordtree.Contribution without importing it here,
// to keep this package's dependency surface minimal; internal/processor
// converts between the two.
type Contribution struct {
	Named bool
	Name  string
	Items []any
}

type entry struct {
	proc  Processor
	order int
}

// Registry holds an ordered list of processors. It is safe to register
// from multiple goroutines before Freeze is called; after Freeze, Find is
// read-only and safe for concurrent use without locking.
type Registry struct {
	mu      sync.Mutex
	entries []entry
	counter int
	frozen  []entry
	isFrozen bool
}

func New() *Registry {
	return &Registry{}
}

// Register adds proc to the registry. Panics if called after Freeze, since
// the evaluator's thread-safety guarantee depends on the processor set
// being fixed once evaluation starts.
func (r *Registry) Register(proc Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isFrozen {
		panic("registry: Register called after Freeze")
	}
	r.entries = append(r.entries, entry{proc: proc, order: r.counter})
	r.counter++
}

// Unregister removes every processor equal to proc (by identity).
func (r *Registry) Unregister(proc Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isFrozen {
		panic("registry: Unregister called after Freeze")
	}
	out := r.entries[:0]
	for _, e := range r.entries {
		if e.proc != proc {
			out = append(out, e)
		}
	}
	r.entries = out
}

// Freeze sorts the registered processors by priority (stable on insertion
// order) and fixes the set for the rest of this evaluation run.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	frozen := make([]entry, len(r.entries))
	copy(frozen, r.entries)
	sort.SliceStable(frozen, func(i, j int) bool {
		if frozen[i].proc.Priority() != frozen[j].proc.Priority() {
			return frozen[i].proc.Priority() < frozen[j].proc.Priority()
		}
		return frozen[i].order < frozen[j].order
	})
	r.frozen = frozen
	r.isFrozen = true
}

// Find returns the first processor (by priority, then insertion order) that
// can handle step, or nil if none can.
func (r *Registry) Find(step query.Step) Processor {
	for _, e := range r.frozen {
		if e.proc.CanHandle(step) {
			return e.proc
		}
	}
	return nil
}

// Processors returns the frozen processor list, for diagnostics/testing.
func (r *Registry) Processors() []Processor {
	out := make([]Processor, len(r.frozen))
	for i, e := range r.frozen {
		out[i] = e.proc
	}
	return out
}
