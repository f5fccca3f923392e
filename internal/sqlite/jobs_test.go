package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/freshset/pkg/types"
)

func TestSaveJob_RequiresID(t *testing.T) {
	b, _ := attachTemp(t)
	assert.ErrorIs(t, b.SaveJob(nil), types.ErrInvalidID)
	assert.ErrorIs(t, b.SaveJob(&types.FineTuneJob{}), types.ErrInvalidID)
}

func TestSaveJob_Upsert(t *testing.T) {
	b, _ := attachTemp(t)

	job := &types.FineTuneJob{JobID: "ftjob-abc", TrainingFileID: "file-1", BaseModel: "gpt-4o-2024-08-06"}
	require.NoError(t, b.SaveJob(job))

	finished := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	job.Status = types.JobSucceeded
	job.FineTunedModel = "ft:gpt-4o:org:fruitai-freshness:abc"
	job.TrainedTokens = 1234
	job.FinishedAt = &finished
	require.NoError(t, b.SaveJob(job))

	got, err := b.GetJob("ftjob-abc")
	require.NoError(t, err)
	assert.Equal(t, types.JobSucceeded, got.Status)
	assert.Equal(t, "ft:gpt-4o:org:fruitai-freshness:abc", got.FineTunedModel)
	assert.Equal(t, int64(1234), got.TrainedTokens)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, finished.Equal(*got.FinishedAt))

	all, err := b.ListJobs()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestListJobs_NewestFirst(t *testing.T) {
	b, _ := attachTemp(t)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"ftjob-old", "ftjob-mid", "ftjob-new"} {
		require.NoError(t, b.SaveJob(&types.FineTuneJob{
			JobID:     id,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	jobs, err := b.ListJobs()
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "ftjob-new", jobs[0].JobID)
	assert.Equal(t, "ftjob-old", jobs[2].JobID)
}

func TestGetJob_NotFound(t *testing.T) {
	b, _ := attachTemp(t)
	_, err := b.GetJob("nope")
	assert.ErrorIs(t, err, types.ErrNotFound)
}
