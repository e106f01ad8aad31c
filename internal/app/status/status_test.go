package status_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/devdroid/internal/app/status"
	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/storage/memory"
)

func TestServiceRun(t *testing.T) {
	completion := model.Completion{
		Version:         "v1.0.0",
		RunID:           "01JAB3Y5Z8QK1W2E3R4T5Y6V70",
		CompletedAt:     time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC),
		Distro:          "debian",
		SuccessfulSteps: 9,
		FailedSteps:     1,
		TotalSteps:      10,
	}

	tests := map[string]struct {
		completion *model.Completion
		expErrIs   error
	}{
		"Without runs it should fail with not found.": {
			expErrIs: model.ErrNotFound,
		},

		"With a completed run it should return it.": {
			completion: &completion,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			repo, err := memory.NewRepository(memory.RepositoryConfig{})
			require.NoError(err)
			if test.completion != nil {
				require.NoError(repo.SaveCompletion(context.TODO(), *test.completion))
			}

			svc, err := status.NewService(status.ServiceConfig{Repository: repo})
			require.NoError(err)

			got, err := svc.Run(context.TODO(), status.Request{})
			if test.expErrIs != nil {
				assert.ErrorIs(err, test.expErrIs)
				return
			}
			require.NoError(err)
			assert.Equal(test.completion, got)
		})
	}
}
