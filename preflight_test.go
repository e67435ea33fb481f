package preflight_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/printforge/preflight"
	"github.com/printforge/preflight/pkg/core"
	"github.com/printforge/preflight/pkg/tools"
)

func newFacadeStore(t *testing.T) *preflight.GormStore {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "facade.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store := preflight.NewGormStore(db)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestSubmit_Validation(t *testing.T) {
	ctx := context.Background()
	store := newFacadeStore(t)
	files := preflight.NewLocalStore(t.TempDir())

	_, err := preflight.Submit(ctx, store, files, preflight.SubmitParams{
		Filename:       "huge.pdf",
		Data:           make([]byte, 10),
		Mode:           preflight.ModeCheck,
		TTL:            time.Hour,
		MaxUploadBytes: 5,
	})
	require.ErrorIs(t, err, preflight.ErrUploadTooLarge)

	_, err = preflight.Submit(ctx, store, files, preflight.SubmitParams{
		Filename: "nottl.pdf",
		Data:     []byte("%PDF-1.7"),
		Mode:     preflight.ModeCheck,
	})
	require.ErrorIs(t, err, preflight.ErrMissingTTL)
}

// A failed input write must not leave a claimable row behind: the bytes go
// to disk first, the row second.
func TestSubmit_WriteFailureLeavesNothingToClaim(t *testing.T) {
	ctx := context.Background()
	store := newFacadeStore(t)

	// A regular file as temp root makes every input write fail.
	blocked := filepath.Join(t.TempDir(), "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("not a dir"), 0o644))
	files := preflight.NewLocalStore(blocked)

	_, err := preflight.Submit(ctx, store, files, preflight.SubmitParams{
		Filename:    "doomed.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.7"),
		Mode:        preflight.ModeCheck,
		TTL:         time.Hour,
	})
	require.Error(t, err)

	claimed, err := store.Claim(ctx)
	require.NoError(t, err)
	assert.Nil(t, claimed, "no job row may exist for a failed submission")
}

// failingCreateStore rejects every CreateJob.
type failingCreateStore struct {
	preflight.Store
}

func (f *failingCreateStore) CreateJob(ctx context.Context, job *preflight.Job) error {
	return errors.New("create rejected")
}

func TestSubmit_CreateFailureCleansUpInput(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	files := preflight.NewLocalStore(root)
	store := &failingCreateStore{Store: newFacadeStore(t)}

	_, err := preflight.Submit(ctx, store, files, preflight.SubmitParams{
		Filename:    "orphan.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.7"),
		Mode:        preflight.ModeCheck,
		TTL:         time.Hour,
	})
	require.Error(t, err)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed submission must not leave files under the temp root")
}

func TestSubmit_InputReadableBeforeProcessing(t *testing.T) {
	ctx := context.Background()
	store := newFacadeStore(t)
	files := preflight.NewLocalStore(t.TempDir())

	data := []byte("%PDF-1.7 staged")
	job, err := preflight.Submit(ctx, store, files, preflight.SubmitParams{
		Filename:    "staged.pdf",
		ContentType: "application/pdf",
		Data:        data,
		Mode:        preflight.ModeCheck,
		TTL:         time.Hour,
	})
	require.NoError(t, err)

	got, err := files.FetchInput(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

// The facade wires a full round trip without any external tools installed:
// the job still reaches succeeded with a well-formed report.
func TestFacade_EndToEnd_NoTools(t *testing.T) {
	ctx := context.Background()
	store := newFacadeStore(t)
	files := preflight.NewLocalStore(t.TempDir())

	job, err := preflight.Submit(ctx, store, files, preflight.SubmitParams{
		Filename:    "brochure.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.7 facade"),
		Mode:        preflight.ModeCheck,
		TTL:         time.Hour,
	})
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)
	assert.Equal(t, preflight.StatusQueued, job.Status)

	avail := tools.Availability{}
	for _, tool := range tools.AllTools {
		avail[tool] = false
	}
	runner := preflight.NewExecRunner(0, nil)
	orch := preflight.NewOrchestrator(files, files, store, runner, avail, tools.Versions{},
		files.Paths(), preflight.DefaultPipelineConfig(), nil)
	proc := preflight.NewProcessor(store, orch, files, nil)

	did, err := proc.ProcessOne(ctx)
	require.NoError(t, err)
	require.True(t, did)

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, preflight.StatusSucceeded, got.Status)

	data, err := files.ReadOutput(ctx, job.ID, core.OutputReportJSON)
	require.NoError(t, err)

	var rep preflight.Report
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Equal(t, preflight.ReportVersion, rep.Version)
	assert.Equal(t, job.ID, rep.JobID)
	for _, issue := range rep.Issues {
		assert.Equal(t, "TOOL_MISSING", issue.Code)
	}
}

func TestFacade_Cancel(t *testing.T) {
	ctx := context.Background()
	store := newFacadeStore(t)
	files := preflight.NewLocalStore(t.TempDir())

	job, err := preflight.Submit(ctx, store, files, preflight.SubmitParams{
		Filename:    "cancel-me.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.7"),
		Mode:        preflight.ModeCheck,
		TTL:         time.Hour,
	})
	require.NoError(t, err)

	require.NoError(t, store.Cancel(ctx, job.ID))

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, preflight.StatusCancelled, got.Status)
	assert.True(t, got.Status.Terminal())
}
