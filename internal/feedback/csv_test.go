package feedback

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/calmcompass/internal/action"
	"github.com/rcliao/calmcompass/internal/model"
)

func TestReadCSVMissingColumns(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("timestamp_date,phq2_score,gad2_score,action_taken\n2026-01-01,1,2,tiny_task\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrSchemaMismatch))

	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, []string{"action_suggested", "helped_score"}, se.Missing)
}

func TestReadCSVEmptyInput(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.True(t, errors.Is(err, model.ErrSchemaMismatch))
}

func TestReadCSVRows(t *testing.T) {
	in := strings.Join([]string{
		"phq2_score,gad2_score,feeling_today,action_suggested,action_taken,helped_score,ml_used,confidence,action_completed",
		"1,5,Anxious,breathing_60s,breathing,2,1,0.81,1",
		"4,1,Sad,reach_out,reach_out,,0,,1",
		"4,1,Sad,reach_out,reach_out,0,0,,0",
		"2,2,,tiny_task,meditate,1,0,,1",
		"x,2,,tiny_task,tiny_task,1,0,,1",
		",3,Stressed,,short_walk,7,0,,1",
		",3,Stressed,,short_walk,1,0,,1",
	}, "\n")

	b, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 7, b.Rows)
	assert.Equal(t, 1, b.DroppedIncomplete)
	assert.Equal(t, 3, b.DroppedInvalid)
	assert.Len(t, b.Problems, 3)
	require.Len(t, b.Records, 3)

	first := b.Records[0]
	assert.Equal(t, action.Breathing60s, first.ActionTaken, "legacy alias resolved")
	assert.Equal(t, model.Yes, first.Helped)
	assert.True(t, first.MLUsed)
	assert.Equal(t, 0.81, first.Confidence)
	require.NotNil(t, first.PHQ2)
	assert.Equal(t, 1, *first.PHQ2)

	assert.Equal(t, model.ALittle, b.Records[1].Helped, "blank helped_score defaults to a little")
	assert.Nil(t, b.Records[2].PHQ2, "blank score is unanswered")
	assert.Equal(t, action.ID(""), b.Records[2].ActionSuggested)
}

func TestWriteThenRead(t *testing.T) {
	date := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	recs := []model.FeedbackRecord{
		BuildRow(model.CheckInRecord{PHQ2: model.Score(3), GAD2: model.Score(4), FeelingToday: "Overwhelmed"},
			action.ReframePrompt, action.ReframePrompt, "yes", true, 0.512345, date),
		BuildRow(model.CheckInRecord{GAD2: model.Score(0), NeedMost: "Rest, mostly"},
			action.TinyTask, action.ShortWalk, "not_really", false, 0.9, date),
	}
	recs[0].ID = "01JABCDEF0123456789XYZ0000"

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, recs))
	assert.True(t, strings.HasPrefix(buf.String(), strings.Join(Columns, ",")+"\n"))

	b, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, b.Records, 2)

	assert.Equal(t, "01JABCDEF0123456789XYZ0000", b.Records[0].ID)
	assert.Empty(t, b.Records[1].ID)
	assert.Equal(t, 0.5123, b.Records[0].Confidence)
	assert.Equal(t, "2026-03-14", b.Records[0].Date.Format("2006-01-02"))
	assert.Equal(t, model.NotReally, b.Records[1].Helped)
	assert.Equal(t, 0.0, b.Records[1].Confidence, "confidence only kept when ml was used")
	assert.Equal(t, "Rest, mostly", b.Records[1].NeedMost)
	assert.Nil(t, b.Records[1].PHQ2)
}
