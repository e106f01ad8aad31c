package lib_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/storage/jsonfile"
	"github.com/slok/devdroid/pkg/lib"
)

func newClient(t *testing.T) (*lib.Client, *jsonfile.Repository, string) {
	t.Helper()

	dataDir := t.TempDir()
	client, err := lib.New(lib.Config{DataDir: dataDir, Prefix: "/usr"})
	require.NoError(t, err)

	repo, err := jsonfile.NewRepository(jsonfile.RepositoryConfig{DataDir: dataDir})
	require.NoError(t, err)

	return client, repo, dataDir
}

func TestClientStatus(t *testing.T) {
	tests := map[string]struct {
		completion    *model.Completion
		expErr        error
		expCompletion *lib.Completion
	}{
		"Without an install it should return not found.": {
			expErr: lib.ErrNotFound,
		},

		"With an install it should return the last completion.": {
			completion: &model.Completion{
				Version:         "v1.0.0",
				RunID:           "01JAB3Y5Z8QK1W2E3R4T5Y6V70",
				CompletedAt:     time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC),
				Distro:          "debian",
				SuccessfulSteps: 9,
				FailedSteps:     1,
				TotalSteps:      10,
			},
			expCompletion: &lib.Completion{
				Version:         "v1.0.0",
				RunID:           "01JAB3Y5Z8QK1W2E3R4T5Y6V70",
				CompletedAt:     time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC),
				Distro:          "debian",
				SuccessfulSteps: 9,
				FailedSteps:     1,
				TotalSteps:      10,
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			client, repo, _ := newClient(t)
			if test.completion != nil {
				require.NoError(t, repo.SaveCompletion(context.TODO(), *test.completion))
			}

			got, err := client.Status(context.TODO())
			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expCompletion.RunID, got.RunID)
			assert.Equal(t, test.expCompletion.SuccessfulSteps, got.SuccessfulSteps)
			assert.Equal(t, test.expCompletion.TotalSteps, got.TotalSteps)
			assert.True(t, test.expCompletion.CompletedAt.Equal(got.CompletedAt))
		})
	}
}

func TestClientSteps(t *testing.T) {
	tests := map[string]struct {
		opts     *lib.StepsOpts
		expFirst int
		expTotal int
		expErr   error
	}{
		"Default estimates should be used without options.": {
			expFirst: 60,
			expTotal: 2830,
		},

		"Overrides should be clamped to the step estimate range.": {
			opts:     &lib.StepsOpts{EstimateOverrides: map[string]int{"pkg_update": 7200}},
			expFirst: 3600,
			expTotal: 6370,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			client, _, _ := newClient(t)

			plan, err := client.Steps(test.opts)
			require.NoError(t, err)
			require.Len(t, plan.Steps, 10)
			assert.Equal(t, 1, plan.Steps[0].Number)
			assert.Equal(t, "pkg_update", plan.Steps[0].WorkID)
			assert.Equal(t, 10, plan.Steps[9].Number)
			assert.Equal(t, test.expFirst, plan.Steps[0].EstimatedSeconds)
			assert.Equal(t, test.expTotal, plan.TotalEstimatedSeconds)
		})
	}
}

func TestClientSnapshots(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client, repo, dataDir := newClient(t)

	snaps, err := client.ListSnapshots(context.TODO(), "")
	require.NoError(err)
	assert.Empty(snaps)

	archive := filepath.Join(dataDir, "snapshots", "01JAB3Y5Z8QK1W2E3R4T5Y6V70.tar.gz")
	require.NoError(os.MkdirAll(filepath.Dir(archive), 0o755))
	require.NoError(os.WriteFile(archive, []byte("tar"), 0o644))
	require.NoError(repo.CreateSnapshot(context.TODO(), model.Snapshot{
		ID:        "01JAB3Y5Z8QK1W2E3R4T5Y6V70",
		Name:      "debian-clean",
		Distro:    "debian",
		Path:      archive,
		SizeBytes: 3,
		CreatedAt: time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC),
	}))

	snaps, err = client.ListSnapshots(context.TODO(), "debian")
	require.NoError(err)
	require.Len(snaps, 1)
	assert.Equal("debian-clean", snaps[0].Name)

	removed, err := client.RemoveSnapshot(context.TODO(), "debian-clean")
	require.NoError(err)
	assert.Equal("01JAB3Y5Z8QK1W2E3R4T5Y6V70", removed.ID)
	assert.NoFileExists(archive)

	_, err = client.RemoveSnapshot(context.TODO(), "debian-clean")
	assert.ErrorIs(err, lib.ErrNotFound)
}

func TestClientDoctor(t *testing.T) {
	client, _, _ := newClient(t)

	results, err := client.Doctor(context.TODO(), "")
	require.NoError(t, err)
	require.Len(t, results, 9)
	assert.Equal(t, "termux_host", results[0].ID)
	assert.Equal(t, lib.CheckStatusError, results[0].Status)
	assert.Equal(t, "last_run", results[8].ID)
}

func TestClientSelfTestInvalidMirror(t *testing.T) {
	client, _, _ := newClient(t)

	_, err := client.SelfTest(context.TODO(), &lib.SelfTestOpts{MirrorURL: "not a url"})
	assert.Error(t, err)
}
