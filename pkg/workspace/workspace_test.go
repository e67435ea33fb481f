package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printforge/preflight/pkg/core"
)

func TestPaths_Derivation(t *testing.T) {
	p := Paths{Root: "/tmp/preflight"}
	id := "123e4567-e89b-12d3-a456-426614174000"

	assert.Equal(t, filepath.Join("/tmp/preflight", id), p.JobDir(id))
	assert.Equal(t, filepath.Join("/tmp/preflight", id, "input.pdf"), p.InputPath(id))
	assert.Equal(t, filepath.Join("/tmp/preflight", id, "output", "report.json"), p.OutputPath(id, core.OutputReportJSON))
	assert.Equal(t, filepath.Join("/tmp/preflight", id, "output", "proof.png"), p.OutputPath(id, core.OutputProofPNG))
	assert.Equal(t, filepath.Join("/tmp/preflight", id, "output", "fixed.pdf"), p.OutputPath(id, core.OutputFixedPDF))
}

func TestLocalStore_InputRoundTrip(t *testing.T) {
	ctx := context.Background()
	ls := NewLocalStore(t.TempDir())
	id := uuid.New().String()

	require.NoError(t, ls.WriteInput(ctx, id, []byte("%PDF-1.4 test")))

	data, err := ls.FetchInput(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 test"), data)
}

func TestLocalStore_FetchMissingInput(t *testing.T) {
	ctx := context.Background()
	ls := NewLocalStore(t.TempDir())

	_, err := ls.FetchInput(ctx, uuid.New().String())
	assert.ErrorIs(t, err, ErrInputMissing)
}

func TestLocalStore_RejectsNonUUIDJobID(t *testing.T) {
	ctx := context.Background()
	ls := NewLocalStore(t.TempDir())

	assert.ErrorIs(t, ls.WriteInput(ctx, "../evil", nil), core.ErrInvalidJobID)
	_, err := ls.FetchInput(ctx, "../evil")
	assert.ErrorIs(t, err, core.ErrInvalidJobID)
	assert.ErrorIs(t, ls.StoreOutput(ctx, "..", core.OutputReportJSON, nil), core.ErrInvalidJobID)
}

func TestLocalStore_OutputRoundTrip(t *testing.T) {
	ctx := context.Background()
	ls := NewLocalStore(t.TempDir())
	id := uuid.New().String()

	require.NoError(t, ls.StoreOutput(ctx, id, core.OutputReportJSON, []byte(`{"version":"prepress_report_v1"}`)))

	data, err := ls.ReadOutput(ctx, id, core.OutputReportJSON)
	require.NoError(t, err)
	assert.Contains(t, string(data), "prepress_report_v1")
}

func TestLocalStore_RemoveInputKeepsOutputs(t *testing.T) {
	ctx := context.Background()
	ls := NewLocalStore(t.TempDir())
	id := uuid.New().String()

	require.NoError(t, ls.WriteInput(ctx, id, []byte("input")))
	require.NoError(t, ls.StoreOutput(ctx, id, core.OutputProofPNG, []byte("png")))

	require.NoError(t, ls.RemoveInput(id))
	require.NoError(t, ls.RemoveInput(id), "second removal is a no-op")

	_, err := ls.FetchInput(ctx, id)
	assert.ErrorIs(t, err, ErrInputMissing)

	data, err := ls.ReadOutput(ctx, id, core.OutputProofPNG)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)
}

func TestLocalStore_RemoveJobDir(t *testing.T) {
	ctx := context.Background()
	ls := NewLocalStore(t.TempDir())
	id := uuid.New().String()

	require.NoError(t, ls.WriteInput(ctx, id, []byte("input")))
	require.NoError(t, ls.RemoveJobDir(id))

	_, err := os.Stat(ls.Paths().JobDir(id))
	assert.True(t, os.IsNotExist(err), "job directory should be gone")
}
