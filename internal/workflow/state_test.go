package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/semcraft/internal/model"
)

func draftFixture() *model.Draft {
	return &model.Draft{
		Name: "orders_model",
		Tables: []model.Table{{
			Name:      "orders",
			BaseTable: model.TableRef{Database: "ANALYTICS", Schema: "SEMANTIC", Table: "ORDERS"},
		}},
	}
}

func TestSetDestination(t *testing.T) {
	s := NewSession()

	t.Run("all parts required", func(t *testing.T) {
		err := s.SetDestination("ANALYTICS", "", "STAGE1")
		require.Error(t, err)

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []string{"schema"}, verr.Missing)
		assert.Nil(t, s.Destination())
	})

	t.Run("valid triple is stored", func(t *testing.T) {
		require.NoError(t, s.SetDestination("ANALYTICS", "SEMANTIC", "STAGE1"))
		dest := s.Destination()
		require.NotNil(t, dest)
		assert.Equal(t, "ANALYTICS.SEMANTIC.STAGE1", dest.String())
	})

	t.Run("resubmission with empty part drops the stored destination", func(t *testing.T) {
		err := s.SetDestination("ANALYTICS", "", "STAGE1")
		require.Error(t, err)
		assert.Nil(t, s.Destination())
		assert.False(t, s.NextUnlocked(StageStore))
	})

	t.Run("clearing relocks dependent stages", func(t *testing.T) {
		require.NoError(t, s.SetDestination("ANALYTICS", "SEMANTIC", "STAGE1"))
		s.ClearDestination()
		assert.Nil(t, s.Destination())
		assert.False(t, s.NextUnlocked(StageStore))
	})
}

func TestUploadEnabledRequiresAllThree(t *testing.T) {
	base := Snapshot{
		DraftExists: true,
		Destination: &Destination{Database: "ANALYTICS", Schema: "SEMANTIC", Stage: "STAGE1"},
		Validated:   true,
	}
	assert.True(t, UploadEnabled(base))

	noDraft := base
	noDraft.DraftExists = false
	assert.False(t, UploadEnabled(noDraft))

	noDest := base
	noDest.Destination = nil
	assert.False(t, UploadEnabled(noDest))

	notValidated := base
	notValidated.Validated = false
	assert.False(t, UploadEnabled(notValidated))

	emptySchema := base
	emptySchema.Destination = &Destination{Database: "ANALYTICS", Schema: "", Stage: "STAGE1"}
	assert.False(t, UploadEnabled(emptySchema))
}

func TestEditAfterValidationResetsValidated(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.SetDestination("ANALYTICS", "SEMANTIC", "STAGE1"))
	s.SetDraft(draftFixture())
	require.NoError(t, s.MarkValidated())
	require.True(t, s.UploadEnabled())

	// validate -> edit -> attempt upload -> rejected
	require.NoError(t, s.MutateDraft(func(d *model.Draft) {
		d.Tables[0].Description = "one row per order"
	}))
	assert.False(t, s.Validated())
	assert.False(t, s.UploadEnabled())
	assert.False(t, s.NextUnlocked(StageValidate))
}

func TestStageGates(t *testing.T) {
	s := NewSession()

	// Nothing configured: only getting started is gated on settings.
	assert.False(t, s.NextUnlocked(StageGettingStarted))
	assert.False(t, s.NextUnlocked(StageStore))
	assert.False(t, s.NextUnlocked(StageCreate))
	assert.False(t, s.NextUnlocked(StageEdit))
	assert.False(t, s.NextUnlocked(StageValidate))
	assert.False(t, s.NextUnlocked(StageUpload))

	s.MarkSettingsChecked(true)
	assert.True(t, s.NextUnlocked(StageGettingStarted))

	require.NoError(t, s.SetDestination("ANALYTICS", "SEMANTIC", "STAGE1"))
	assert.True(t, s.NextUnlocked(StageStore))

	s.SetDraft(draftFixture())
	assert.True(t, s.NextUnlocked(StageCreate))
	assert.True(t, s.NextUnlocked(StageEdit))

	require.NoError(t, s.MarkValidated())
	assert.True(t, s.NextUnlocked(StageValidate))

	// Upload never has a next stage.
	assert.False(t, s.NextUnlocked(StageUpload))
}

func TestScenarioStoreThenInvalidate(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.SetDestination("ANALYTICS", "SEMANTIC", "STAGE1"))
	s.SetDraft(draftFixture())
	require.NoError(t, s.MarkValidated())
	require.True(t, s.UploadEnabled())

	// Resubmitting with schema cleared to empty rejects the triple and
	// drops the stored destination, so upload re-locks on its own.
	err := s.SetDestination("ANALYTICS", "", "STAGE1")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"schema"}, verr.Missing)
	assert.Nil(t, s.Destination())
	assert.False(t, s.UploadEnabled())
}

func TestSetDraftReplacesAndInvalidates(t *testing.T) {
	s := NewSession()
	s.SetDraft(draftFixture())
	require.NoError(t, s.MarkValidated())

	s.SetDraft(&model.Draft{Name: "fresh_model"})
	assert.False(t, s.Validated())
	assert.Equal(t, "fresh_model", s.Draft().Name)
	assert.Empty(t, s.Draft().Tables)
}

func TestMarkValidatedRequiresDraft(t *testing.T) {
	s := NewSession()
	err := s.MarkValidated()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"draft"}, verr.Missing)
}

func TestDraftReturnsCopy(t *testing.T) {
	s := NewSession()
	s.SetDraft(draftFixture())
	require.NoError(t, s.MarkValidated())

	// Mutating the returned copy must not bypass the validation reset.
	copyDraft := s.Draft()
	copyDraft.Tables[0].Name = "mutated"
	assert.Equal(t, "orders", s.Draft().Tables[0].Name)
	assert.True(t, s.Validated())
}

func TestCurationAttemptLifecycle(t *testing.T) {
	s := NewSession()
	s.SetDraft(draftFixture())

	t.Run("single attempt in flight", func(t *testing.T) {
		token, err := s.BeginCuration()
		require.NoError(t, err)

		_, err = s.BeginCuration()
		assert.ErrorIs(t, err, ErrCurationInFlight)

		s.EndCuration(token)
		_, err = s.BeginCuration()
		require.NoError(t, err)
		s.CancelCuration()
	})

	t.Run("late result after cancel is discarded", func(t *testing.T) {
		token, err := s.BeginCuration()
		require.NoError(t, err)
		s.CancelCuration()

		err = s.ApplyCuration(token, &model.Draft{Name: "late"})
		assert.ErrorIs(t, err, ErrCurationSuperseded)
		assert.Equal(t, "orders_model", s.Draft().Name)
	})

	t.Run("applying a live attempt replaces the draft", func(t *testing.T) {
		require.NoError(t, s.MarkValidated())
		token, err := s.BeginCuration()
		require.NoError(t, err)

		require.NoError(t, s.ApplyCuration(token, &model.Draft{Name: "revised_model"}))
		assert.Equal(t, "revised_model", s.Draft().Name)
		assert.False(t, s.Validated())

		// Slot is free again.
		_, err = s.BeginCuration()
		require.NoError(t, err)
		s.CancelCuration()
	})

	t.Run("replacing the draft supersedes a pending attempt", func(t *testing.T) {
		token, err := s.BeginCuration()
		require.NoError(t, err)

		s.SetDraft(&model.Draft{Name: "manual_edit"})

		err = s.ApplyCuration(token, &model.Draft{Name: "llm_revision"})
		assert.ErrorIs(t, err, ErrCurationSuperseded)
		assert.Equal(t, "manual_edit", s.Draft().Name)

		// The superseded attempt no longer occupies the slot.
		_, err = s.BeginCuration()
		require.NoError(t, err)
		s.CancelCuration()
	})

	t.Run("editing the draft supersedes a pending attempt", func(t *testing.T) {
		token, err := s.BeginCuration()
		require.NoError(t, err)

		require.NoError(t, s.MutateDraft(func(d *model.Draft) {
			d.Description = "hand-tuned"
		}))

		err = s.ApplyCuration(token, &model.Draft{Name: "llm_revision"})
		assert.ErrorIs(t, err, ErrCurationSuperseded)
		assert.Equal(t, "hand-tuned", s.Draft().Description)
	})
}

func TestRestore(t *testing.T) {
	dest := &Destination{Database: "A", Schema: "B", Stage: "C"}
	s := Restore("abc-123", draftFixture(), dest, true)
	assert.Equal(t, "abc-123", s.ID())
	assert.True(t, s.Validated())
	assert.Equal(t, "A.B.C", s.Destination().String())

	s2 := Restore("", nil, nil, false)
	assert.NotEmpty(t, s2.ID())
}
