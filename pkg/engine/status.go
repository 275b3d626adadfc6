package engine

import (
	"fmt"
)

// ChangeType classifies the outcome of importing one entity.
type ChangeType string

const (
	// ChangeNoChange indicates the entity already matched the document.
	ChangeNoChange ChangeType = "no_change"

	// ChangeUpdated indicates at least one attribute was written.
	ChangeUpdated ChangeType = "updated"

	// ChangeCreated indicates the entity did not exist before the import.
	ChangeCreated ChangeType = "created"

	// ChangeFailed indicates the entity could not be imported.
	ChangeFailed ChangeType = "failed"
)

// IsChange returns true if the entity was modified.
func (c ChangeType) IsChange() bool {
	return c == ChangeUpdated || c == ChangeCreated
}

// Validate checks if the change type is valid.
func (c ChangeType) Validate() error {
	switch c {
	case ChangeNoChange, ChangeUpdated, ChangeCreated, ChangeFailed:
		return nil
	default:
		return fmt.Errorf("invalid change type: %s", c)
	}
}

// Mode selects how much of the import protocol Deserialize runs.
type Mode string

const (
	// ModeSinglePass runs the first pass and resolves bindings immediately.
	// Use it when every referenced entity already exists.
	ModeSinglePass Mode = "single_pass"

	// ModeFirstPassOnly stops after the first pass and returns the pending
	// bindings. The caller runs SecondPass once the whole batch exists.
	ModeFirstPassOnly Mode = "first_pass_only"
)

// Validate checks if the mode is valid.
func (m Mode) Validate() error {
	switch m {
	case ModeSinglePass, ModeFirstPassOnly:
		return nil
	default:
		return fmt.Errorf("invalid import mode: %s", m)
	}
}

// Slot names the entity attribute a deferred binding writes.
type Slot string

const (
	// SlotParent is the inherited master reference.
	SlotParent Slot = "parent"

	// SlotAllowedChildren is the allowed-child structure list.
	SlotAllowedChildren Slot = "allowed_children"
)

// Validate checks if the slot is valid.
func (s Slot) Validate() error {
	switch s {
	case SlotParent, SlotAllowedChildren:
		return nil
	default:
		return fmt.Errorf("invalid binding slot: %s", s)
	}
}

// ChangeAction represents the type of change being made.
type ChangeAction string

const (
	// ChangeActionAdd indicates something was added.
	ChangeActionAdd ChangeAction = "add"

	// ChangeActionRemove indicates something was removed.
	ChangeActionRemove ChangeAction = "remove"

	// ChangeActionModify indicates a value was replaced.
	ChangeActionModify ChangeAction = "modify"
)
