package store

import (
	"context"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/semcraft/internal/model"
	"github.com/leapstack-labs/semcraft/internal/workflow"
)

func testDest() workflow.Destination {
	return workflow.Destination{Database: "ANALYTICS", Schema: "SEMANTIC", Stage: "STAGE1"}
}

func expectUse(mock sqlmock.Sqlmock) {
	mock.ExpectExec("USE DATABASE ANALYTICS").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("USE SCHEMA SEMANTIC").WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestStageTmpNamePrefix(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewStage(db, testDest())
	assert.True(t, strings.HasPrefix(s.TmpName(), "semcraft_tmp_model_"))
}

func TestStageExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectUse(mock)
	mock.ExpectQuery("SELECT stage_name FROM information_schema.stages").
		WithArgs("STAGE1").
		WillReturnRows(sqlmock.NewRows([]string{"stage_name"}).AddRow("STAGE1"))

	s := NewStage(db, testDest())
	ok, err := s.Exists(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStageExistsBindsStageName(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	dest := testDest()
	dest.Stage = "STAGE'1"

	expectUse(mock)
	mock.ExpectQuery("SELECT stage_name FROM information_schema.stages").
		WithArgs("STAGE'1").
		WillReturnRows(sqlmock.NewRows([]string{"stage_name"}))

	s := NewStage(db, dest)
	ok, err := s.Exists(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStageExistsMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectUse(mock)
	mock.ExpectQuery("SELECT stage_name FROM information_schema.stages").
		WillReturnRows(sqlmock.NewRows([]string{"stage_name"}))

	s := NewStage(db, testDest())
	ok, err := s.Exists(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStageEnsureCreatesMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectUse(mock)
	mock.ExpectQuery("SELECT stage_name FROM information_schema.stages").
		WillReturnRows(sqlmock.NewRows([]string{"stage_name"}))
	mock.ExpectExec("CREATE STAGE IF NOT EXISTS STAGE1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	s := NewStage(db, testDest())
	require.NoError(t, s.Ensure(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStageEnsureSkipsExisting(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectUse(mock)
	mock.ExpectQuery("SELECT stage_name FROM information_schema.stages").
		WillReturnRows(sqlmock.NewRows([]string{"stage_name"}).AddRow("STAGE1"))

	s := NewStage(db, testDest())
	require.NoError(t, s.Ensure(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStagePut(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectUse(mock)
	mock.ExpectExec(`PUT file://.+/orders\.yaml @STAGE1 AUTO_COMPRESS=FALSE OVERWRITE=TRUE`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := NewStage(db, testDest())
	require.NoError(t, s.Put(context.Background(), "orders.yaml", "name: orders\n"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStagePutUseFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("USE DATABASE ANALYTICS").WillReturnError(assert.AnError)

	s := NewStage(db, testDest())
	err = s.Put(context.Background(), "orders.yaml", "name: orders\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "set database ANALYTICS")
}

func TestStageRemove(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectUse(mock)
	mock.ExpectExec(`REMOVE @STAGE1/orders\.yaml`).WillReturnResult(sqlmock.NewResult(0, 1))

	s := NewStage(db, testDest())
	require.NoError(t, s.Remove(context.Background(), "orders.yaml"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadModelAppendsSuffixAndCleansStash(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewStage(db, testDest())

	expectUse(mock)
	mock.ExpectExec(`PUT file://.+/order_events\.yaml @STAGE1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectUse(mock)
	mock.ExpectExec(`REMOVE @STAGE1/semcraft_tmp_model_.+\.yaml`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	draft := &model.Draft{Name: "Order Events"}
	require.NoError(t, s.UploadModel(context.Background(), draft, "order_events"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadModelStashRemovalBestEffort(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewStage(db, testDest())

	expectUse(mock)
	mock.ExpectExec(`PUT file://.+/orders\.yaml @STAGE1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectUse(mock)
	mock.ExpectExec(`REMOVE @STAGE1/semcraft_tmp_model_`).
		WillReturnError(assert.AnError)

	draft := &model.Draft{Name: "orders"}
	assert.NoError(t, s.UploadModel(context.Background(), draft, "orders.yaml"))
}

func TestStashValidated(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewStage(db, testDest())

	expectUse(mock)
	mock.ExpectExec(`PUT file://.+/semcraft_tmp_model_.+\.yaml @STAGE1`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	draft := &model.Draft{Name: "orders"}
	require.NoError(t, s.StashValidated(context.Background(), draft))
	assert.NoError(t, mock.ExpectationsWereMet())
}
