// Package store persists the finished model artifact to the configured
// destination: a three-part qualified stage the current role can write
// to. The transfer verbs (PUT/GET/REMOVE) run as opaque statements over
// the warehouse connection; their wire protocol is the warehouse's
// problem.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/leapstack-labs/semcraft/internal/model"
	"github.com/leapstack-labs/semcraft/internal/workflow"
)

// Conn is the slice of a database connection the store needs.
// *sql.DB satisfies it.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Stage wraps the destination with the operations the wizard needs:
// existence check, artifact upload/download, cleanup.
type Stage struct {
	conn    Conn
	dest    workflow.Destination
	tmpName string
}

// NewStage creates a stage handle for the destination. The temporary
// artifact name is fixed per handle so a later real upload can clean up
// the validation stash.
func NewStage(conn Conn, dest workflow.Destination) *Stage {
	return &Stage{
		conn:    conn,
		dest:    dest,
		tmpName: fmt.Sprintf("semcraft_tmp_model_%s", time.Now().Format("20060102_150405")),
	}
}

// TmpName returns the temporary artifact name used by validation stashes.
func (s *Stage) TmpName() string { return s.tmpName }

// useDestination scopes the connection to the destination's database
// and schema before a stage verb.
func (s *Stage) useDestination(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, fmt.Sprintf("USE DATABASE %s", s.dest.Database)); err != nil {
		return fmt.Errorf("set database %s: %w", s.dest.Database, err)
	}
	if _, err := s.conn.ExecContext(ctx, fmt.Sprintf("USE SCHEMA %s", s.dest.Schema)); err != nil {
		return fmt.Errorf("set schema %s: %w", s.dest.Schema, err)
	}
	return nil
}

// Exists checks that the destination stage is reachable and writable
// enough to describe.
func (s *Stage) Exists(ctx context.Context) (bool, error) {
	if err := s.useDestination(ctx); err != nil {
		return false, err
	}
	var name string
	err := s.conn.QueryRowContext(ctx,
		"SELECT stage_name FROM information_schema.stages WHERE stage_name = ?",
		s.dest.Stage,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("describe stage %s: %w", s.dest, err)
	}
	return true, nil
}

// Ensure creates the destination stage when it does not already exist.
func (s *Stage) Ensure(ctx context.Context) error {
	ok, err := s.Exists(ctx)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if _, err := s.conn.ExecContext(ctx, fmt.Sprintf("CREATE STAGE IF NOT EXISTS %s", s.dest.Stage)); err != nil {
		return fmt.Errorf("create stage %s: %w", s.dest, err)
	}
	return nil
}

// Put writes the artifact text under fileName on the stage, overwriting
// any prior version.
func (s *Stage) Put(ctx context.Context, fileName, contents string) error {
	if err := s.useDestination(ctx); err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp("", "semcraft-upload-")
	if err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	localPath := filepath.Join(tmpDir, fileName)
	if err := os.WriteFile(localPath, []byte(contents), 0o600); err != nil {
		return fmt.Errorf("write upload file: %w", err)
	}

	putSQL := fmt.Sprintf("PUT file://%s @%s AUTO_COMPRESS=FALSE OVERWRITE=TRUE", localPath, s.dest.Stage)
	if _, err := s.conn.ExecContext(ctx, putSQL); err != nil {
		return fmt.Errorf("upload %s to %s: %w", fileName, s.dest, err)
	}
	return nil
}

// Get downloads the named artifact from the stage and returns its text.
func (s *Stage) Get(ctx context.Context, fileName string) (string, error) {
	if err := s.useDestination(ctx); err != nil {
		return "", err
	}

	tmpDir, err := os.MkdirTemp("", "semcraft-download-")
	if err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	getSQL := fmt.Sprintf("GET @%s/%s file://%s", s.dest.Stage, fileName, tmpDir)
	if _, err := s.conn.ExecContext(ctx, getSQL); err != nil {
		return "", fmt.Errorf("download %s from %s: %w", fileName, s.dest, err)
	}

	content, err := os.ReadFile(filepath.Join(tmpDir, fileName))
	if err != nil {
		return "", fmt.Errorf("read downloaded file: %w", err)
	}
	return string(content), nil
}

// Remove deletes the named artifact from the stage.
func (s *Stage) Remove(ctx context.Context, fileName string) error {
	if err := s.useDestination(ctx); err != nil {
		return err
	}
	removeSQL := fmt.Sprintf("REMOVE @%s/%s", s.dest.Stage, fileName)
	if _, err := s.conn.ExecContext(ctx, removeSQL); err != nil {
		return fmt.Errorf("remove %s from %s: %w", fileName, s.dest, err)
	}
	return nil
}

// UploadModel serializes the draft and writes it under fileName,
// appending the .yaml suffix when missing. After a real upload the
// temporary validation stash is removed best-effort.
func (s *Stage) UploadModel(ctx context.Context, draft *model.Draft, fileName string) error {
	if !strings.HasSuffix(fileName, ".yaml") {
		fileName += ".yaml"
	}

	text, err := model.ToYAML(draft)
	if err != nil {
		return err
	}
	if err := s.Put(ctx, fileName, text); err != nil {
		return err
	}

	if fileName != s.tmpName+".yaml" {
		// The stash may not exist; ignore failures.
		_ = s.Remove(ctx, s.tmpName+".yaml")
	}
	return nil
}

// StashValidated uploads the just-validated draft under the temporary
// name so downstream tooling can exercise it before the real upload.
func (s *Stage) StashValidated(ctx context.Context, draft *model.Draft) error {
	text, err := model.ToYAML(draft)
	if err != nil {
		return err
	}
	return s.Put(ctx, s.tmpName+".yaml", text)
}
