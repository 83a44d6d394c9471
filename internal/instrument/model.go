package instrument

import (
	"fmt"
	"sort"
)

// ScaleOption is one selectable response on an ordinal scale.
type ScaleOption struct {
	Value int    `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// ResponseScale is an ordered list of options with strictly increasing values.
type ResponseScale []ScaleOption

// Contains reports whether value is one of the declared scale values.
func (s ResponseScale) Contains(value int) bool {
	for _, opt := range s {
		if opt.Value == value {
			return true
		}
	}
	return false
}

// Max returns the highest value on the scale, or 0 for an empty scale.
func (s ResponseScale) Max() int {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1].Value
}

// Label returns the label for value.
func (s ResponseScale) Label(value int) (string, bool) {
	for _, opt := range s {
		if opt.Value == value {
			return opt.Label, true
		}
	}
	return "", false
}

// Question is a scored (primary) question. Index is assigned at load time
// from the question's position and never changes.
type Question struct {
	Index  int           `yaml:"-" json:"index"`
	Prompt string        `yaml:"prompt" json:"prompt"`
	Scale  ResponseScale `yaml:"scale,omitempty" json:"scale,omitempty"`
}

// Tier is one block of recommended actions, e.g. "Today" or "This week".
type Tier struct {
	Key     string   `yaml:"key" json:"key"`
	Title   string   `yaml:"title" json:"title"`
	Actions []string `yaml:"actions" json:"actions"`
}

// SeverityBand is a closed score range [Lower, Upper] with the tiers
// recommended for scores that fall inside it.
type SeverityBand struct {
	Key   string `yaml:"key" json:"key"`
	Label string `yaml:"label" json:"label"`
	Lower int    `yaml:"lower" json:"lower"`
	Upper int    `yaml:"upper" json:"upper"`
	Tiers []Tier `yaml:"tiers" json:"-"`
}

// Contains reports whether score lies in the band. Both bounds are inclusive.
func (b SeverityBand) Contains(score int) bool {
	return score >= b.Lower && score <= b.Upper
}

// CrisisPlan holds the crisis rule and the tiers shown when it fires.
// With Override set the crisis tiers replace the severity tiers entirely;
// otherwise they are shown ahead of them.
type CrisisPlan struct {
	Rule     Rule   `yaml:"rule"`
	Override bool   `yaml:"override"`
	Tiers    []Tier `yaml:"tiers"`
}

// AddOnModule is an optional recommendation block gated by When.
type AddOnModule struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
	Body  string `yaml:"body" json:"body"`
	When  Rule   `yaml:"when" json:"-"`
}

// Instrument is a complete questionnaire definition. Instances returned by
// Build, Parse and the catalog loaders are validated and must be treated as
// read-only.
type Instrument struct {
	ID          string           `yaml:"id" json:"id"`
	Title       string           `yaml:"title" json:"title"`
	Description string           `yaml:"description" json:"description"`
	Scale       ResponseScale    `yaml:"scale" json:"scale"`
	Questions   []Question       `yaml:"questions" json:"questions"`
	Bands       []SeverityBand   `yaml:"bands" json:"bands"`
	Crisis      CrisisPlan       `yaml:"crisis" json:"-"`
	Ancillary   []AncillaryField `yaml:"ancillary" json:"ancillary"`
	AddOns      []AddOnModule    `yaml:"addons" json:"-"`

	maxScore  int
	fields    map[string]int
	validated bool
}

// Build validates def and returns a ready-to-use deep copy of it, so later
// changes to def cannot affect the result. Any problem in the definition is
// reported as a *ConfigurationError.
func Build(def Instrument) (*Instrument, error) {
	in := def
	in.Scale = cloneScale(def.Scale)
	in.Questions = make([]Question, len(def.Questions))
	for i, q := range def.Questions {
		q.Index = i
		q.Scale = cloneScale(q.Scale)
		in.Questions[i] = q
	}
	in.Bands = make([]SeverityBand, len(def.Bands))
	for i, b := range def.Bands {
		b.Tiers = cloneTiers(b.Tiers)
		in.Bands[i] = b
	}
	in.Crisis = CrisisPlan{
		Rule:     def.Crisis.Rule.clone(),
		Override: def.Crisis.Override,
		Tiers:    cloneTiers(def.Crisis.Tiers),
	}
	in.Ancillary = make([]AncillaryField, len(def.Ancillary))
	for i, f := range def.Ancillary {
		f.Options = append([]FieldOption(nil), f.Options...)
		in.Ancillary[i] = f
	}
	in.AddOns = make([]AddOnModule, len(def.AddOns))
	for i, a := range def.AddOns {
		a.When = a.When.clone()
		in.AddOns[i] = a
	}

	if problems := validate(&in); len(problems) > 0 {
		return nil, &ConfigurationError{Instrument: def.ID, Problems: problems}
	}

	in.maxScore = 0
	for _, q := range in.Questions {
		in.maxScore += in.ScaleFor(q).Max()
	}
	in.fields = make(map[string]int, len(in.Ancillary))
	for i, f := range in.Ancillary {
		in.fields[f.ID] = i
	}
	in.validated = true
	return &in, nil
}

// Validated reports whether the instrument came out of Build.
func (in *Instrument) Validated() bool {
	return in != nil && in.validated
}

// MaxScore is the highest attainable total score.
func (in *Instrument) MaxScore() int {
	return in.maxScore
}

// QuestionCount returns the number of primary questions.
func (in *Instrument) QuestionCount() int {
	return len(in.Questions)
}

// QuestionAt returns the question at index.
func (in *Instrument) QuestionAt(index int) (Question, error) {
	if index < 0 || index >= len(in.Questions) {
		return Question{}, fmt.Errorf("%w: question %d in instrument %q", ErrNotFound, index, in.ID)
	}
	return in.Questions[index], nil
}

// ScaleFor returns the question's own scale, falling back to the shared one.
func (in *Instrument) ScaleFor(q Question) ResponseScale {
	if len(q.Scale) > 0 {
		return q.Scale
	}
	return in.Scale
}

// SeverityFor returns the band containing score. Bands are sorted, so this is
// a binary search on the upper bounds.
func (in *Instrument) SeverityFor(score int) (SeverityBand, error) {
	i := sort.Search(len(in.Bands), func(i int) bool {
		return in.Bands[i].Upper >= score
	})
	if i < len(in.Bands) && in.Bands[i].Contains(score) {
		return in.Bands[i], nil
	}
	return SeverityBand{}, &ConfigurationError{
		Instrument: in.ID,
		Problems:   []string{fmt.Sprintf("no severity band contains score %d", score)},
	}
}

// Band looks up a severity band by key.
func (in *Instrument) Band(key string) (SeverityBand, bool) {
	for _, b := range in.Bands {
		if b.Key == key {
			return b, true
		}
	}
	return SeverityBand{}, false
}

// AncillaryFields returns the follow-up fields in declared order.
func (in *Instrument) AncillaryFields() []AncillaryField {
	out := make([]AncillaryField, len(in.Ancillary))
	copy(out, in.Ancillary)
	return out
}

// Field looks up an ancillary field by id.
func (in *Instrument) Field(id string) (AncillaryField, error) {
	i, ok := in.fields[id]
	if !ok {
		return AncillaryField{}, fmt.Errorf("%w: field %q in instrument %q", ErrNotFound, id, in.ID)
	}
	return in.Ancillary[i], nil
}

func cloneScale(s ResponseScale) ResponseScale {
	if s == nil {
		return nil
	}
	return append(ResponseScale(nil), s...)
}

func cloneTiers(tiers []Tier) []Tier {
	if tiers == nil {
		return nil
	}
	out := make([]Tier, len(tiers))
	for i, t := range tiers {
		t.Actions = append([]string(nil), t.Actions...)
		out[i] = t
	}
	return out
}
