package workflow

// Snapshot is the read-only view of session state the gating rules are
// evaluated against. Keeping the rules pure over a snapshot makes them
// testable without a hosting surface.
type Snapshot struct {
	SettingsReady bool
	Destination   *Destination
	DraftExists   bool
	Validated     bool
}

// NextUnlocked decides whether the stage after the given one is
// reachable. Rules are evaluated top-down, first match wins:
//
//  1. Getting started unlocks once the connection settings check passed.
//  2. Store unlocks once the destination is set with all three parts
//     non-empty.
//  3. Create and Edit unlock once a draft with a non-empty name exists.
//  4. Validate unlocks once the draft passed validation.
//  5. Upload has no next stage.
func NextUnlocked(id StageID, snap Snapshot) bool {
	switch id {
	case StageGettingStarted:
		return snap.SettingsReady
	case StageStore:
		return snap.Destination != nil && snap.Destination.Complete()
	case StageCreate, StageEdit:
		return snap.DraftExists
	case StageValidate:
		return snap.Validated
	default:
		return false
	}
}

// UploadEnabled decides whether the final destructive action is
// permitted. This is a stronger condition than "previous stage
// unlocked": validation can be invalidated by edits performed after
// visiting the Validate stage, so all three parts are re-checked
// together.
func UploadEnabled(snap Snapshot) bool {
	return snap.DraftExists && snap.Destination != nil && snap.Destination.Complete() && snap.Validated
}
