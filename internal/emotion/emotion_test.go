package emotion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   Label
		wantOK bool
	}{
		{"empty", "", "", false},
		{"blank", "   ", "", false},
		{"no match", "Had a pretty normal day.", "", false},
		{"sadness", "I feel so lonely and sad today", Sadness, true},
		{"anger stem", "Really FRUSTRATED with my manager!", Anger, true},
		{"apostrophe keyword", "I can't focus, my thoughts are racing", Anxiety, true},
		{"fatigue phrase", "exhausted, no energy at all", Fatigue, true},
		{"overwhelm phrases", "there is too much, I'm drowning and stuck", Overwhelm, true},
		// "overwhelmed" scores twice for anxiety and once for overwhelm.
		{"anxiety lexicon wins on overwhelmed", "overwhelmed", Anxiety, true},
		// one hit each: the earlier lexicon entry wins.
		{"tie goes to first entry", "sad and angry", Sadness, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Detect(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExplain(t *testing.T) {
	assert.Contains(t, Explain(Fatigue), "fatigue")
	assert.Equal(t, noLabelExplanation, Explain(""))
	assert.Equal(t, noLabelExplanation, Explain("joy"))
}
