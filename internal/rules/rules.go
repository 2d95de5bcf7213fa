// Package rules is the deterministic fallback recommender. It has no learned
// parameters and returns an action for every input.
package rules

import (
	"strings"

	"github.com/rcliao/calmcompass/internal/action"
	"github.com/rcliao/calmcompass/internal/features"
	"github.com/rcliao/calmcompass/internal/model"
)

// ElevatedAt is the PHQ-2/GAD-2 score at which a scale counts as elevated.
const ElevatedAt = 3

// Bucket is the severity derived from the two screening scores.
type Bucket int

const (
	Incomplete Bucket = iota
	Minimal
	ElevatedMood
	ElevatedAnxiety
	ElevatedBoth
	numBuckets
)

var bucketNames = [numBuckets]string{"incomplete", "minimal", "elevated_mood", "elevated_anxiety", "elevated_both"}

func (b Bucket) String() string { return bucketNames[b] }

// Context is the dominant signal from the categorical fields.
type Context int

const (
	Neutral Context = iota
	Anxious
	Overwhelmed
	Low
	Stressed
	Burnout
	numContexts
)

var contextNames = [numContexts]string{"neutral", "anxious", "overwhelmed", "low", "stressed", "burnout"}

func (c Context) String() string { return contextNames[c] }

// table is indexed [Bucket][Context]. Its array type makes every cell exist.
var table = [numBuckets][numContexts]action.ID{
	Incomplete: {
		Neutral: action.Breathing60s, Anxious: action.Breathing60s, Overwhelmed: action.ReframePrompt,
		Low: action.ReachOut, Stressed: action.ShortWalk, Burnout: action.TinyTask,
	},
	Minimal: {
		Neutral: action.Breathing60s, Anxious: action.Breathing60s, Overwhelmed: action.ReframePrompt,
		Low: action.ReachOut, Stressed: action.ShortWalk, Burnout: action.TinyTask,
	},
	ElevatedMood: {
		Neutral: action.ReachOut, Anxious: action.Breathing60s, Overwhelmed: action.ReframePrompt,
		Low: action.ReachOut, Stressed: action.ReachOut, Burnout: action.ReachOut,
	},
	ElevatedAnxiety: {
		Neutral: action.Breathing60s, Anxious: action.Breathing60s, Overwhelmed: action.Breathing60s,
		Low: action.Breathing60s, Stressed: action.Breathing60s, Burnout: action.Breathing60s,
	},
	ElevatedBoth: {
		Neutral: action.Breathing60s, Anxious: action.Breathing60s, Overwhelmed: action.Breathing60s,
		Low: action.Breathing60s, Stressed: action.Breathing60s, Burnout: action.Breathing60s,
	},
}

// BucketOf derives severity from whichever scales were answered.
func BucketOf(phq2, gad2 *int) Bucket {
	if phq2 == nil && gad2 == nil {
		return Incomplete
	}
	mood := phq2 != nil && model.ClipScore(*phq2) >= ElevatedAt
	anxiety := gad2 != nil && model.ClipScore(*gad2) >= ElevatedAt
	switch {
	case mood && anxiety:
		return ElevatedBoth
	case anxiety:
		return ElevatedAnxiety
	case mood:
		return ElevatedMood
	}
	return Minimal
}

// ContextOf picks the first matching signal in priority order:
// anxious, overwhelmed, low, stressed, burnout.
func ContextOf(rec model.CheckInRecord) Context {
	feeling := features.Normalize(rec.FeelingToday)
	workload := features.Normalize(rec.WorkloadStress)
	emotion := features.Normalize(rec.TextEmotionLabel)

	switch {
	case strings.Contains(feeling, "anxi") || emotion == "fear" || strings.Contains(emotion, "anxi"):
		return Anxious
	case strings.Contains(feeling, "overwhelm") || emotion == "overwhelm":
		return Overwhelmed
	case strings.Contains(feeling, "low") || strings.Contains(feeling, "sad") || emotion == "sadness":
		return Low
	case strings.Contains(feeling, "stress") || strings.Contains(workload, "stress") || emotion == "anger":
		return Stressed
	case strings.Contains(workload, "burnout") || strings.Contains(workload, "overwhelm") || emotion == "fatigue":
		return Burnout
	}
	return Neutral
}

// Lookup returns the table cell for a bucket and context.
func Lookup(b Bucket, c Context) action.ID {
	if b < 0 || b >= numBuckets || c < 0 || c >= numContexts {
		return action.Breathing60s
	}
	return table[b][c]
}

// Suggest returns the fallback action for rec.
func Suggest(rec model.CheckInRecord) action.ID {
	return Lookup(BucketOf(rec.PHQ2, rec.GAD2), ContextOf(rec))
}
