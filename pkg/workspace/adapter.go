package workspace

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/printforge/preflight/pkg/core"
	"github.com/printforge/preflight/pkg/security"
)

// ErrInputMissing is returned when a job's input bytes are not where the
// derived path says they should be.
var ErrInputMissing = errors.New("workspace: job input not found")

// InputAdapter fetches the bytes a job was created for. The concrete
// strategy is injected at process startup; the orchestrator never branches
// on it.
type InputAdapter interface {
	FetchInput(ctx context.Context, jobID string) ([]byte, error)
}

// OutputAdapter stores a named durable artifact for a job. Swappable for
// remote signed-URL storage without touching the orchestrator.
type OutputAdapter interface {
	StoreOutput(ctx context.Context, jobID string, kind core.OutputKind, data []byte) error
}

// LocalStore implements both adapters over the local temp filesystem, keyed
// solely by job id.
type LocalStore struct {
	paths Paths
}

// NewLocalStore creates a LocalStore rooted at tempRoot.
func NewLocalStore(tempRoot string) *LocalStore {
	return &LocalStore{paths: Paths{Root: tempRoot}}
}

// Paths exposes the derived path layout, for callers that need scratch
// locations next to the adapters.
func (l *LocalStore) Paths() Paths {
	return l.paths
}

// WriteInput persists uploaded bytes at the job's input path. Called by the
// upload layer before the job row is created.
func (l *LocalStore) WriteInput(ctx context.Context, jobID string, data []byte) error {
	if err := security.ValidateJobID(jobID); err != nil {
		return err
	}
	if err := os.MkdirAll(l.paths.JobDir(jobID), 0o755); err != nil {
		return err
	}
	return os.WriteFile(l.paths.InputPath(jobID), data, 0o644)
}

// FetchInput reads the job's input bytes.
func (l *LocalStore) FetchInput(ctx context.Context, jobID string) ([]byte, error) {
	if err := security.ValidateJobID(jobID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.paths.InputPath(jobID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrInputMissing
	}
	return data, err
}

// StoreOutput writes one durable artifact under the job's output directory.
func (l *LocalStore) StoreOutput(ctx context.Context, jobID string, kind core.OutputKind, data []byte) error {
	if err := security.ValidateJobID(jobID); err != nil {
		return err
	}
	if err := os.MkdirAll(l.paths.OutputDir(jobID), 0o755); err != nil {
		return err
	}
	return os.WriteFile(l.paths.OutputPath(jobID, kind), data, 0o644)
}

// ReadOutput reads a stored artifact back; used by the download layer.
func (l *LocalStore) ReadOutput(ctx context.Context, jobID string, kind core.OutputKind) ([]byte, error) {
	if err := security.ValidateJobID(jobID); err != nil {
		return nil, err
	}
	return os.ReadFile(l.paths.OutputPath(jobID, kind))
}

// RemoveInput deletes only the scratch input file, keeping outputs. Called
// after finalization regardless of outcome.
func (l *LocalStore) RemoveInput(jobID string) error {
	if err := security.ValidateJobID(jobID); err != nil {
		return err
	}
	err := os.Remove(l.paths.InputPath(jobID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// RemoveJobDir deletes the whole per-job directory. Only the TTL sweep may
// call this.
func (l *LocalStore) RemoveJobDir(jobID string) error {
	if err := security.ValidateJobID(jobID); err != nil {
		return err
	}
	return os.RemoveAll(l.paths.JobDir(jobID))
}
