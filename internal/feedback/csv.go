package feedback

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rcliao/calmcompass/internal/action"
	"github.com/rcliao/calmcompass/internal/model"
)

// Batch is the result of reading a feedback CSV.
type Batch struct {
	Records []model.FeedbackRecord
	// Rows read from the file, excluding the header.
	Rows int
	// DroppedIncomplete counts rows with action_completed != 1.
	DroppedIncomplete int
	// DroppedInvalid counts rows with an unknown action or unparseable values.
	DroppedInvalid int
	// Problems holds one line per invalid row, capped at maxProblems.
	Problems []string
}

const maxProblems = 20

// WriteCSV writes records with a header in Columns order.
func WriteCSV(w io.Writer, records []model.FeedbackRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(toRow(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func toRow(r model.FeedbackRecord) []string {
	date := ""
	if !r.Date.IsZero() {
		date = r.Date.Format(dateLayout)
	}
	ml, conf := "0", ""
	if r.MLUsed {
		ml = "1"
		conf = strconv.FormatFloat(r.Confidence, 'f', -1, 64)
	}
	return []string{
		r.ID,
		date,
		scoreString(r.PHQ2),
		scoreString(r.GAD2),
		r.FeelingToday,
		r.WorkloadStress,
		r.NeedMost,
		r.TextEmotionLabel,
		string(r.ActionSuggested),
		string(r.ActionTaken),
		strconv.Itoa(int(r.Helped)),
		ml,
		conf,
	}
}

func scoreString(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

// ReadCSV parses a feedback export. A header missing any RequiredColumns
// fails with *SchemaError. Bad rows are dropped and counted, not fatal.
func ReadCSV(r io.Reader) (*Batch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &SchemaError{Missing: RequiredColumns}
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := map[string]int{}
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	var missing []string
	for _, c := range RequiredColumns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	b := &Batch{}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", b.Rows+1, err)
		}
		b.Rows++
		get := func(col string) string {
			i, ok := idx[col]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		if _, ok := idx[CompletedColumn]; ok && !truthy(get(CompletedColumn)) {
			b.DroppedIncomplete++
			continue
		}

		rec, err := parseRow(get)
		if err != nil {
			b.DroppedInvalid++
			if len(b.Problems) < maxProblems {
				b.Problems = append(b.Problems, fmt.Sprintf("row %d: %v", b.Rows, err))
			}
			continue
		}
		b.Records = append(b.Records, rec)
	}
	return b, nil
}

func parseRow(get func(string) string) (model.FeedbackRecord, error) {
	var r model.FeedbackRecord

	taken, err := action.Parse(get("action_taken"))
	if err != nil {
		return r, fmt.Errorf("action_taken: %w", err)
	}
	r.ActionTaken = taken
	if s, err := action.Parse(get("action_suggested")); err == nil {
		r.ActionSuggested = s
	}

	if r.PHQ2, err = parseScore(get("phq2_score")); err != nil {
		return r, fmt.Errorf("phq2_score: %w", err)
	}
	if r.GAD2, err = parseScore(get("gad2_score")); err != nil {
		return r, fmt.Errorf("gad2_score: %w", err)
	}
	if r.Helped, err = model.ParseHelpedScore(get("helped_score")); err != nil {
		return r, err
	}

	if d := get("timestamp_date"); d != "" {
		if t, err := time.Parse(dateLayout, d); err == nil {
			r.Date = t
		}
	}
	r.ID = get(IDColumn)
	r.FeelingToday = get("feeling_today")
	r.WorkloadStress = get("workload_stress")
	r.NeedMost = get("need_most")
	r.TextEmotionLabel = get("text_emotion_label")
	r.MLUsed = truthy(get("ml_used"))
	if r.MLUsed {
		if c, err := strconv.ParseFloat(get("confidence"), 64); err == nil && c >= 0 && c <= 1 {
			r.Confidence = c
		}
	}
	return r, nil
}

func parseScore(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	v := int(f)
	if float64(v) != f {
		return nil, fmt.Errorf("%q is not an integer", s)
	}
	return &v, nil
}

func truthy(s string) bool {
	switch strings.ToLower(s) {
	case "1", "1.0", "true", "yes":
		return true
	}
	return false
}
