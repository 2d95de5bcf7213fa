package cli

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/calmcompass/internal/emotion"
	"github.com/rcliao/calmcompass/internal/model"
)

// addCheckInFlags registers the check-in fields shared by recommend and feedback add.
func addCheckInFlags(cmd *cobra.Command) {
	cmd.Flags().Int("phq2", -1, "PHQ-2 score 0-6 (-1: not answered)")
	cmd.Flags().Int("gad2", -1, "GAD-2 score 0-6 (-1: not answered)")
	cmd.Flags().String("feeling", "", "How are you feeling today")
	cmd.Flags().String("workload", "", "Workload or stress level")
	cmd.Flags().String("need", "", "What you need most right now")
	cmd.Flags().String("emotion", "", "Emotion label (default: detected from --text)")
	cmd.Flags().String("text", "", "One sentence about how you feel")
	cmd.Flags().String("date", "", "Check-in date YYYY-MM-DD (default: today)")
}

func checkInFromFlags(cmd *cobra.Command) (model.CheckInRecord, error) {
	var c model.CheckInRecord
	for name, dst := range map[string]**int{"phq2": &c.PHQ2, "gad2": &c.GAD2} {
		v, _ := cmd.Flags().GetInt(name)
		if v < 0 {
			continue
		}
		if v > model.MaxScore {
			return c, fmt.Errorf("--%s must be between %d and %d", name, model.MinScore, model.MaxScore)
		}
		*dst = model.Score(v)
	}
	c.FeelingToday, _ = cmd.Flags().GetString("feeling")
	c.WorkloadStress, _ = cmd.Flags().GetString("workload")
	c.NeedMost, _ = cmd.Flags().GetString("need")
	c.TextEmotionLabel, _ = cmd.Flags().GetString("emotion")
	if c.TextEmotionLabel == "" {
		text, _ := cmd.Flags().GetString("text")
		if l, ok := emotion.Detect(text); ok {
			c.TextEmotionLabel = string(l)
		}
	}

	date, _ := cmd.Flags().GetString("date")
	if date == "" {
		c.Date = time.Now().UTC()
		return c, nil
	}
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return c, fmt.Errorf("--date: %w", err)
	}
	c.Date = t
	return c, nil
}

var sinceRegex = regexp.MustCompile(`^(\d+)([dhm])$`)

// parseSince turns "7d", "24h" or "30m" into a cutoff before now.
func parseSince(s string, now time.Time) (time.Time, error) {
	m := sinceRegex.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("invalid duration %q (use e.g. 7d, 24h, 30m)", s)
	}
	n, _ := strconv.Atoi(m[1])
	unit := map[string]time.Duration{"d": 24 * time.Hour, "h": time.Hour, "m": time.Minute}[m[2]]
	return now.Add(-time.Duration(n) * unit), nil
}
