// Package emotion labels a one-sentence feeling with a primary emotion using
// a small keyword lexicon. The label feeds text_emotion_label.
package emotion

import (
	"strings"
	"unicode"
)

// Label is a detected primary emotion.
type Label string

const (
	Sadness   Label = "sadness"
	Anxiety   Label = "anxiety"
	Anger     Label = "anger"
	Fatigue   Label = "fatigue"
	Overwhelm Label = "overwhelm"
)

type entry struct {
	label    Label
	keywords []string
}

// lexicon order breaks ties between equally scored labels.
var lexicon = []entry{
	{Sadness, []string{"sad", "down", "low", "hopeless", "empty", "lonely", "grief", "crying", "tear", "miss", "lost"}},
	{Anxiety, []string{"anxious", "worry", "worried", "nervous", "panic", "scared", "afraid", "overwhelm", "overwhelmed", "can't focus", "racing"}},
	{Anger, []string{"angry", "mad", "frustrat", "irritat", "annoyed", "resent"}},
	{Fatigue, []string{"tired", "exhausted", "drain", "burnout", "no energy", "can't get up", "heavy"}},
	{Overwhelm, []string{"overwhelm", "too much", "can't cope", "drowning", "stuck", "paralyzed", "shut down"}},
}

var explanations = map[Label]string{
	Sadness:   "You might be experiencing low mood or sadness. That's real and it's okay to need support.",
	Anxiety:   "You might be experiencing worry or anxiety. Naming it and a small calming step can help.",
	Anger:     "You might be feeling frustration or anger. Stepping back for a moment can help you choose how to respond.",
	Fatigue:   "You might be experiencing emotional or physical fatigue. You're not lazy, you may be overloaded.",
	Overwhelm: "You might be feeling overwhelmed. That happens when demands feel bigger than your resources. One small step is enough.",
}

const noLabelExplanation = "Putting feelings into words can help. Try one small thing that feels doable."

// Detect returns the emotion with the most keyword hits in sentence.
// Keywords match as substrings after punctuation is stripped, so "frustrat"
// matches "frustrated". ok is false when nothing matched.
func Detect(sentence string) (Label, bool) {
	text := normalize(sentence)
	if text == "" {
		return "", false
	}

	var best Label
	bestScore := 0
	for _, e := range lexicon {
		score := 0
		for _, k := range e.keywords {
			if strings.Contains(text, normalize(k)) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = e.label, score
		}
	}
	return best, bestScore > 0
}

// Explain returns a short validating sentence for l. An empty label gets a
// generic line.
func Explain(l Label) string {
	if s, ok := explanations[l]; ok {
		return s
	}
	return noLabelExplanation
}

// normalize lowercases and drops everything but letters, digits, underscores and spaces.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
