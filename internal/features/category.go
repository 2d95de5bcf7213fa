package features

import "strings"

// Field names a categorical input column.
type Field string

const (
	FeelingToday     Field = "feeling_today"
	WorkloadStress   Field = "workload_stress"
	NeedMost         Field = "need_most"
	TextEmotionLabel Field = "text_emotion_label"
)

// CategoricalFields lists the categorical columns in encoding order.
var CategoricalFields = []Field{FeelingToday, WorkloadStress, NeedMost, TextEmotionLabel}

// Kind tags how a raw categorical value was resolved.
type Kind int

const (
	Known Kind = iota
	Unknown
	Unspecified
)

func (k Kind) String() string {
	switch k {
	case Known:
		return "known"
	case Unknown:
		return "unknown"
	default:
		return "unspecified"
	}
}

// Reserved tokens used in feature names.
const (
	UnknownToken     = "<unknown>"
	UnspecifiedToken = "<unspecified>"
)

// Category is a raw categorical value resolved against a fitted vocabulary.
type Category struct {
	Kind  Kind
	Value string
}

// answers that carry no information
var unspecifiedValues = map[string]bool{
	"":                     true,
	"prefer_not_to_say":    true,
	"prefer_not_to_answer": true,
	"none_selected":        true,
}

// Normalize folds a raw UI value to its vocabulary form:
// lower case, trimmed, inner whitespace and dashes joined with underscores.
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("-", " ", "–", " ", "/", " ").Replace(s)
	return strings.Join(strings.Fields(s), "_")
}

// IsUnspecified reports whether a raw value means "no answer".
func IsUnspecified(raw string) bool {
	return unspecifiedValues[Normalize(raw)]
}
