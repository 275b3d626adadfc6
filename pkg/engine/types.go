package engine

import (
	"github.com/schemasync/schemasync/pkg/schema"
)

// Change records one write made to an entity during import.
type Change struct {
	// Path identifies the attribute, e.g. "info.name" or "fields[title].group".
	Path string `json:"path"`

	// Before is the value before the change.
	Before interface{} `json:"before,omitempty"`

	// After is the value after the change.
	After interface{} `json:"after,omitempty"`

	// Action describes the change action (add, remove, modify).
	Action ChangeAction `json:"action"`
}

// Binding is a cross-entity reference collected during the first pass and
// written during the second, once every entity in the batch exists.
type Binding struct {
	// Source is the entity the binding writes to.
	Source schema.Reference `json:"source"`

	// Kind is the namespace targets are resolved in.
	Kind schema.Kind `json:"kind"`

	// Slot is the attribute being written.
	Slot Slot `json:"slot"`

	// Targets are the references to resolve, in document order.
	Targets []schema.Reference `json:"targets"`
}

// Result is the outcome of one serializer operation on one entity.
type Result struct {
	Alias  string      `json:"alias"`
	Kind   schema.Kind `json:"kind"`
	Change ChangeType  `json:"change"`

	// Err is set only when Change is ChangeFailed.
	Err error `json:"-"`

	// Changes lists every write, in the order applied.
	Changes []Change `json:"changes,omitempty"`

	// Issues are non-fatal problems. The entity was still reconciled.
	Issues []*SyncError `json:"issues,omitempty"`

	// Pending are the bindings left for a second pass.
	Pending []Binding `json:"pending,omitempty"`
}

// Failed returns true if the operation failed.
func (r *Result) Failed() bool {
	return r.Change == ChangeFailed
}

// MarkCreated upgrades a successful result to ChangeCreated.
func (r *Result) MarkCreated() {
	if r.Change != ChangeFailed {
		r.Change = ChangeCreated
	}
}

func (r *Result) record(path string, before, after interface{}, action ChangeAction) {
	r.Changes = append(r.Changes, Change{Path: path, Before: before, After: after, Action: action})
}

func (r *Result) issue(err *SyncError) {
	if err.Entity == "" {
		err.Entity = r.Alias
	}
	r.Issues = append(r.Issues, err)
}

func (r *Result) fail(err *SyncError) Result {
	if err.Entity == "" {
		err.Entity = r.Alias
	}
	r.Change = ChangeFailed
	r.Err = err
	r.Pending = nil
	return *r
}

// merge folds the changes and issues of a later pass into r.
func (r *Result) merge(other Result) {
	r.Changes = append(r.Changes, other.Changes...)
	r.Issues = append(r.Issues, other.Issues...)
	if other.Failed() {
		r.Change = ChangeFailed
		r.Err = other.Err
	}
}

// finalize derives Change from the recorded writes.
func (r *Result) finalize() Result {
	switch {
	case r.Err != nil:
		r.Change = ChangeFailed
	case len(r.Changes) > 0:
		r.Change = ChangeUpdated
	default:
		r.Change = ChangeNoChange
	}
	return *r
}
