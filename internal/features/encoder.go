// Package features turns check-in records into fixed-length numeric vectors.
package features

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/rcliao/calmcompass/internal/model"
)

// NumericFields lists the numeric columns in encoding order.
var NumericFields = []string{"phq2_score", "gad2_score"}

// ErrNoRecords is returned when fitting on an empty batch.
var ErrNoRecords = errors.New("no records to fit")

// Scaler standardizes one numeric column.
type Scaler struct {
	Name string  `json:"name"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Block one-hot encodes one categorical column. Every block carries two
// extra slots after the vocabulary: unknown, then unspecified.
type Block struct {
	Field      Field    `json:"field"`
	Vocabulary []string `json:"vocabulary"`
}

// Encoder holds fitted encoding parameters. It is immutable after Fit.
type Encoder struct {
	Numeric     []Scaler `json:"numeric"`
	Categorical []Block  `json:"categorical"`
}

// Fit learns scaling and vocabularies from a training batch.
func Fit(records []model.CheckInRecord) (*Encoder, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	enc := &Encoder{}
	for _, name := range NumericFields {
		var vals []float64
		for _, r := range records {
			if v, ok := numericValue(r, name); ok {
				vals = append(vals, v)
			}
		}
		enc.Numeric = append(enc.Numeric, fitScaler(name, vals))
	}

	for _, f := range CategoricalFields {
		seen := map[string]bool{}
		for _, r := range records {
			raw := categoricalValue(r, f)
			if IsUnspecified(raw) {
				continue
			}
			seen[Normalize(raw)] = true
		}
		vocab := make([]string, 0, len(seen))
		for v := range seen {
			vocab = append(vocab, v)
		}
		sort.Strings(vocab)
		enc.Categorical = append(enc.Categorical, Block{Field: f, Vocabulary: vocab})
	}
	return enc, nil
}

func fitScaler(name string, vals []float64) Scaler {
	if len(vals) == 0 {
		return Scaler{Name: name, Mean: 0, Std: 1}
	}
	mean, std := stat.PopMeanStdDev(vals, nil)
	if !(std >= 1e-9) {
		std = 1
	}
	return Scaler{Name: name, Mean: mean, Std: std}
}

// Dim is the length of every vector Transform produces.
func (e *Encoder) Dim() int {
	n := len(e.Numeric)
	for _, b := range e.Categorical {
		n += len(b.Vocabulary) + 2
	}
	return n
}

// FeatureNames returns one name per output position.
func (e *Encoder) FeatureNames() []string {
	names := make([]string, 0, e.Dim())
	for _, s := range e.Numeric {
		names = append(names, s.Name)
	}
	for _, b := range e.Categorical {
		for _, v := range b.Vocabulary {
			names = append(names, string(b.Field)+"="+v)
		}
		names = append(names, string(b.Field)+"="+UnknownToken, string(b.Field)+"="+UnspecifiedToken)
	}
	return names
}

// Validate checks that the encoder layout matches the columns this build encodes.
func (e *Encoder) Validate() error {
	if len(e.Numeric) != len(NumericFields) {
		return fmt.Errorf("%w: %d numeric columns, want %d", model.ErrSchemaMismatch, len(e.Numeric), len(NumericFields))
	}
	for i, s := range e.Numeric {
		if s.Name != NumericFields[i] {
			return fmt.Errorf("%w: numeric column %d is %q, want %q", model.ErrSchemaMismatch, i, s.Name, NumericFields[i])
		}
		if !(s.Std > 0) || math.IsNaN(s.Mean) || math.IsInf(s.Mean, 0) {
			return fmt.Errorf("%w: bad scaler for %s", model.ErrSchemaMismatch, s.Name)
		}
	}
	if len(e.Categorical) != len(CategoricalFields) {
		return fmt.Errorf("%w: %d categorical columns, want %d", model.ErrSchemaMismatch, len(e.Categorical), len(CategoricalFields))
	}
	for i, b := range e.Categorical {
		if b.Field != CategoricalFields[i] {
			return fmt.Errorf("%w: categorical column %d is %q, want %q", model.ErrSchemaMismatch, i, b.Field, CategoricalFields[i])
		}
		if !sort.StringsAreSorted(b.Vocabulary) {
			return fmt.Errorf("%w: vocabulary for %s is not sorted", model.ErrSchemaMismatch, b.Field)
		}
	}
	return nil
}

// Resolve maps a raw value onto the fitted vocabulary of field f.
func (e *Encoder) Resolve(f Field, raw string) Category {
	if IsUnspecified(raw) {
		return Category{Kind: Unspecified}
	}
	v := Normalize(raw)
	for _, b := range e.Categorical {
		if b.Field != f {
			continue
		}
		if i := sort.SearchStrings(b.Vocabulary, v); i < len(b.Vocabulary) && b.Vocabulary[i] == v {
			return Category{Kind: Known, Value: v}
		}
		break
	}
	return Category{Kind: Unknown, Value: v}
}

// Transform encodes rec. Scores are clipped to range; a missing score
// encodes as the training mean. Never re-fits.
func (e *Encoder) Transform(rec model.CheckInRecord) ([]float64, error) {
	if len(e.Numeric) != len(NumericFields) || len(e.Categorical) != len(CategoricalFields) {
		return nil, fmt.Errorf("%w: encoder has %d numeric and %d categorical columns",
			model.ErrSchemaMismatch, len(e.Numeric), len(e.Categorical))
	}

	out := make([]float64, 0, e.Dim())
	for _, s := range e.Numeric {
		v, ok := numericValue(rec, s.Name)
		if !ok {
			out = append(out, 0)
			continue
		}
		out = append(out, (v-s.Mean)/s.Std)
	}

	for _, b := range e.Categorical {
		slots := make([]float64, len(b.Vocabulary)+2)
		c := e.Resolve(b.Field, categoricalValue(rec, b.Field))
		switch c.Kind {
		case Known:
			slots[sort.SearchStrings(b.Vocabulary, c.Value)] = 1
		case Unknown:
			slots[len(b.Vocabulary)] = 1
		case Unspecified:
			slots[len(b.Vocabulary)+1] = 1
		}
		out = append(out, slots...)
	}
	return out, nil
}

func numericValue(r model.CheckInRecord, name string) (float64, bool) {
	var p *int
	switch name {
	case "phq2_score":
		p = r.PHQ2
	case "gad2_score":
		p = r.GAD2
	}
	if p == nil {
		return 0, false
	}
	return float64(model.ClipScore(*p)), true
}

func categoricalValue(r model.CheckInRecord, f Field) string {
	switch f {
	case FeelingToday:
		return r.FeelingToday
	case WorkloadStress:
		return r.WorkloadStress
	case NeedMost:
		return r.NeedMost
	case TextEmotionLabel:
		return r.TextEmotionLabel
	}
	return ""
}
