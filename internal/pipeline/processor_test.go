package pipeline

import (
	"context"
	"testing"
	"time"

	"workout-mate-go/internal/model"
	"workout-mate-go/pkg/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWorkoutLogRepo struct {
	appended  []tasks.WorkoutLogTask
	appendErr error
}

func (r *recordingWorkoutLogRepo) Load(username string) []model.WorkoutLogEntry { return nil }

func (r *recordingWorkoutLogRepo) Append(username string, entry model.WorkoutLogEntry) error {
	r.appended = append(r.appended, tasks.WorkoutLogTask{Username: username, Entry: entry})
	return r.appendErr
}

func validTask() tasks.WorkoutLogTask {
	d, _ := time.Parse("2006-01-02", "2024-01-01")
	return tasks.WorkoutLogTask{
		Username: "alice",
		Entry: model.WorkoutLogEntry{
			Date:         model.LogDate(d),
			ExerciseName: "Bench Press",
			MuscleGroup:  "Chest",
			WorkoutType:  "Strength",
			Difficulty:   "intermediate",
			Set1:         "135/10",
		},
	}
}

func TestProcess(t *testing.T) {
	repo := &recordingWorkoutLogRepo{}
	p := NewProcessor(repo)

	require.NoError(t, p.Process(context.Background(), validTask()))
	require.Len(t, repo.appended, 1)
	assert.Equal(t, "alice", repo.appended[0].Username)
	assert.Equal(t, "Bench Press", repo.appended[0].Entry.ExerciseName)
}

func TestProcessRejectsMissingUsername(t *testing.T) {
	repo := &recordingWorkoutLogRepo{}
	p := NewProcessor(repo)

	task := validTask()
	task.Username = ""
	assert.Error(t, p.Process(context.Background(), task))
	assert.Empty(t, repo.appended)
}

func TestProcessRejectsInvalidEntry(t *testing.T) {
	repo := &recordingWorkoutLogRepo{}
	p := NewProcessor(repo)

	task := validTask()
	task.Entry.MuscleGroup = ""
	assert.Error(t, p.Process(context.Background(), task))
	assert.Empty(t, repo.appended)
}
