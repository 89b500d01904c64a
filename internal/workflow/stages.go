// Package workflow implements the ordered authoring pipeline: the fixed
// stage sequence, the per-session mutable state, and the gating rules
// that decide which stage is reachable at any moment.
package workflow

import "fmt"

// StageID identifies one stage of the authoring wizard.
type StageID string

// The fixed stage identifiers, in pipeline order.
const (
	StageGettingStarted StageID = "getting_started"
	StageStore          StageID = "store"
	StageCreate         StageID = "create"
	StageEdit           StageID = "edit"
	StageValidate       StageID = "validate"
	StageUpload         StageID = "upload"
)

// Stage describes one ordered step of the wizard. The sequence is
// immutable configuration, not user data.
type Stage struct {
	ID      StageID
	Title   string
	Ordinal int
}

// Stages is the configured stage sequence in execution order.
var Stages = []Stage{
	{ID: StageGettingStarted, Title: "Getting started", Ordinal: 0},
	{ID: StageStore, Title: "Store", Ordinal: 1},
	{ID: StageCreate, Title: "Create", Ordinal: 2},
	{ID: StageEdit, Title: "Edit", Ordinal: 3},
	{ID: StageValidate, Title: "Validate", Ordinal: 4},
	{ID: StageUpload, Title: "Upload", Ordinal: 5},
}

// UnknownStageError reports navigation against a stage that is not part
// of the configured sequence. Misuse must fail loudly rather than
// silently landing on the first stage.
type UnknownStageError struct {
	ID StageID
}

func (e *UnknownStageError) Error() string {
	return fmt.Sprintf("unknown wizard stage: %q", e.ID)
}

// IndexOf returns the position of the stage in the configured sequence.
func IndexOf(id StageID) (int, error) {
	for i, s := range Stages {
		if s.ID == id {
			return i, nil
		}
	}
	return 0, &UnknownStageError{ID: id}
}

// StageByID resolves a stage descriptor from its identifier.
func StageByID(id StageID) (Stage, error) {
	i, err := IndexOf(id)
	if err != nil {
		return Stage{}, err
	}
	return Stages[i], nil
}

// PreviousAndNext returns the neighbouring stages of the given stage.
// The first stage has no previous and the last has no next; those
// positions are returned as nil.
func PreviousAndNext(id StageID) (prev, next *Stage, err error) {
	i, err := IndexOf(id)
	if err != nil {
		return nil, nil, err
	}
	if i > 0 {
		p := Stages[i-1]
		prev = &p
	}
	if i < len(Stages)-1 {
		n := Stages[i+1]
		next = &n
	}
	return prev, next, nil
}
