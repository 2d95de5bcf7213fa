package store

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/calmcompass/internal/action"
	"github.com/rcliao/calmcompass/internal/feedback"
	"github.com/rcliao/calmcompass/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	require.NoError(t, err, "create store")
	t.Cleanup(func() { s.Close() })
	return s
}

func sample(taken action.ID, helped model.HelpedScore) model.FeedbackRecord {
	return model.FeedbackRecord{
		CheckInRecord: model.CheckInRecord{
			Date:         time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC),
			PHQ2:         model.Score(2),
			GAD2:         model.Score(4),
			FeelingToday: "Anxious",
		},
		ActionSuggested: action.Breathing60s,
		ActionTaken:     taken,
		Helped:          helped,
	}
}

func TestAddAndListFeedback(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	r := sample(action.Breathing60s, model.Yes)
	r.MLUsed = true
	r.Confidence = 0.61
	got, err := s.AddFeedback(ctx, r)
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.CreatedAt.IsZero(), "created_at set")

	list, err := s.ListFeedback(ctx, FeedbackFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)

	l := list[0]
	assert.Equal(t, got.ID, l.ID)
	assert.Equal(t, action.Breathing60s, l.ActionTaken)
	assert.Equal(t, model.Yes, l.Helped)
	require.NotNil(t, l.PHQ2)
	require.NotNil(t, l.GAD2)
	assert.Equal(t, 2, *l.PHQ2)
	assert.Equal(t, 4, *l.GAD2)
	assert.True(t, l.MLUsed)
	assert.Equal(t, 0.61, l.Confidence)
	assert.True(t, l.Date.Equal(r.Date), "date %v, want %v", l.Date, r.Date)
}

func TestAddFeedbackKeepsUnansweredScores(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	r := sample(action.ReachOut, model.ALittle)
	r.PHQ2 = nil
	_, err := s.AddFeedback(ctx, r)
	require.NoError(t, err)

	list, err := s.ListFeedback(ctx, FeedbackFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].PHQ2)
}

func TestAddFeedbackRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	bad := []model.FeedbackRecord{
		sample("meditate", model.Yes),
		sample(action.TinyTask, model.HelpedScore(7)),
	}
	r := sample(action.TinyTask, model.Yes)
	r.GAD2 = model.Score(9)
	bad = append(bad, r)

	for _, b := range bad {
		_, err := s.AddFeedback(ctx, b)
		assert.True(t, errors.Is(err, ErrInvalidFeedback), "%+v: %v", b, err)
	}
}

func TestRuleBasedFeedbackDropsConfidence(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	r := sample(action.ShortWalk, model.Yes)
	r.Confidence = 0.2
	_, err := s.AddFeedback(ctx, r)
	require.NoError(t, err)

	list, err := s.ListFeedback(ctx, FeedbackFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 0.0, list[0].Confidence)
}

func TestListFeedbackFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []action.ID{action.Breathing60s, action.Breathing60s, action.ReachOut} {
		r := sample(id, model.Yes)
		r.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		r.MLUsed = i == 0
		_, err := s.AddFeedback(ctx, r)
		require.NoError(t, err)
	}

	all, err := s.ListFeedback(ctx, FeedbackFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, action.ReachOut, all[0].ActionTaken, "newest first")

	breathing, _ := s.ListFeedback(ctx, FeedbackFilter{ActionTaken: action.Breathing60s})
	assert.Len(t, breathing, 2)

	modelServed, _ := s.ListFeedback(ctx, FeedbackFilter{Source: "model"})
	assert.Len(t, modelServed, 1)

	recent, _ := s.ListFeedback(ctx, FeedbackFilter{Since: base.Add(90 * time.Minute)})
	assert.Len(t, recent, 1)

	limited, _ := s.ListFeedback(ctx, FeedbackFilter{Limit: 2})
	assert.Len(t, limited, 2)
}

func TestExportAndImport(t *testing.T) {
	ctx := context.Background()
	src := newTestStore(t)

	_, err := src.AddFeedback(ctx, sample(action.Breathing60s, model.Yes))
	require.NoError(t, err)
	_, err = src.AddFeedback(ctx, sample(action.Grounding54321, model.NotReally))
	require.NoError(t, err)

	exported, err := src.ExportAll(ctx)
	require.NoError(t, err)
	require.Len(t, exported, 2)

	dst := newTestStore(t)
	n, err := dst.Import(ctx, exported)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = dst.Import(ctx, exported)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "duplicates skipped")

	fresh := sample(action.TinyTask, model.ALittle)
	n, err = dst.Import(ctx, []model.FeedbackRecord{fresh})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "record without id imported")
}

func TestImportCSVTwiceKeepsRowCount(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.AddFeedback(ctx, sample(action.Breathing60s, model.Yes))
	require.NoError(t, err)
	exported, err := s.ExportAll(ctx)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, feedback.WriteCSV(&buf, exported))
	data := buf.Bytes()

	for i := 0; i < 2; i++ {
		b, err := feedback.ReadCSV(bytes.NewReader(data))
		require.NoError(t, err)
		require.Len(t, b.Records, 1)
		assert.Equal(t, exported[0].ID, b.Records[0].ID)

		n, err := s.Import(ctx, b.Records)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	}

	all, err := s.ExportAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	dst := newTestStore(t)
	for want := 1; want >= 0; want-- {
		b, err := feedback.ReadCSV(bytes.NewReader(data))
		require.NoError(t, err)
		n, err := dst.Import(ctx, b.Records)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	all, err = dst.ExportAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestImportIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Import(ctx, []model.FeedbackRecord{
		sample(action.Breathing60s, model.Yes),
		sample("nope", model.Yes),
	})
	require.Error(t, err)

	all, err := s.ExportAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRuns(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := s.RecordRun(ctx, Run{ModelVersion: "v1", NSamples: 10, ActionIDs: []action.ID{action.Breathing60s, action.ReachOut}, ArtifactDir: "models", CreatedAt: base})
	require.NoError(t, err)
	r2, err := s.RecordRun(ctx, Run{ModelVersion: "v2", NSamples: 250, ActionIDs: []action.ID{action.Breathing60s}, ArtifactDir: "models", Source: "db", Warnings: []string{"skewed"}, CreatedAt: base.Add(time.Hour)})
	require.NoError(t, err)
	assert.NotEmpty(t, r2.ID)

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "v2", runs[0].ModelVersion)
	assert.Equal(t, []string{"skewed"}, runs[0].Warnings)
	assert.Equal(t, "db", runs[0].Source)
	assert.Len(t, runs[1].ActionIDs, 2)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	for _, r := range []model.FeedbackRecord{
		sample(action.Breathing60s, model.Yes),
		sample(action.Breathing60s, model.NotReally),
		sample(action.ReachOut, model.ALittle),
	} {
		_, err := s.AddFeedback(ctx, r)
		require.NoError(t, err)
	}
	_, err = s.RecordRun(ctx, Run{ModelVersion: "v1", ActionIDs: []action.ID{action.Breathing60s}, ArtifactDir: "m"})
	require.NoError(t, err)

	st, err := s.Stats(ctx, dbPath)
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalFeedback)
	assert.Equal(t, 1, st.TrainingRuns)
	require.Len(t, st.Actions, 2)

	b := st.Actions[0]
	assert.Equal(t, action.Breathing60s, b.Action)
	assert.Equal(t, 2, b.Count)
	assert.Equal(t, 1.0, b.MeanHelped)
	assert.Equal(t, 1, b.Yes)
	assert.Equal(t, 1, b.NotReally)
}
