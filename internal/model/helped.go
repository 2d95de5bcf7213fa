package model

import (
	"fmt"
	"strconv"
	"strings"
)

// HelpedScore is the self-reported outcome of an action.
type HelpedScore int

const (
	NotReally HelpedScore = 0
	ALittle   HelpedScore = 1
	Yes       HelpedScore = 2
)

var helpedLabels = map[string]HelpedScore{
	"yes":        Yes,
	"a_little":   ALittle,
	"not_really": NotReally,
}

// Valid reports whether h is one of the three outcomes.
func (h HelpedScore) Valid() bool {
	return h >= NotReally && h <= Yes
}

func (h HelpedScore) String() string {
	switch h {
	case Yes:
		return "yes"
	case ALittle:
		return "a_little"
	case NotReally:
		return "not_really"
	}
	return fmt.Sprintf("helped(%d)", int(h))
}

// SampleWeight is the training weight for an outcome. Never zero: a
// "not really" still counts as weak evidence.
func SampleWeight(h HelpedScore) float64 {
	switch h {
	case Yes:
		return 2.0
	case NotReally:
		return 0.25
	default:
		return 1.0
	}
}

// ParseHelpedScore parses the CSV form (0, 1 or 2). Blank means "a little".
func ParseHelpedScore(s string) (HelpedScore, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ALittle, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse helped_score %q: %w", s, err)
	}
	h := HelpedScore(int(f))
	if float64(h) != f || !h.Valid() {
		return 0, fmt.Errorf("helped_score %q out of range", s)
	}
	return h, nil
}

// HelpedScoreFromLabel maps the UI answer (yes, a_little, not_really).
// Unrecognised answers count as "a little".
func HelpedScoreFromLabel(label string) HelpedScore {
	if h, ok := helpedLabels[strings.ToLower(strings.TrimSpace(label))]; ok {
		return h
	}
	return ALittle
}
