package instrument

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDefinition() Instrument {
	scale := ResponseScale{{0, "Never"}, {1, "Sometimes"}, {2, "Often"}}
	tiers := []Tier{{Key: "next", Title: "Next", Actions: []string{"do something"}}}
	return Instrument{
		ID:    "sample",
		Title: "Sample",
		Scale: scale,
		Questions: []Question{
			{Prompt: "one"},
			{Prompt: "two"},
			{Prompt: "three"},
		},
		Bands: []SeverityBand{
			{Key: "low", Label: "Low", Lower: 0, Upper: 2, Tiers: tiers},
			{Key: "high", Label: "High", Lower: 3, Upper: 6, Tiers: tiers},
		},
		Crisis: CrisisPlan{
			Rule:  QuestionAtLeast(2, 1),
			Tiers: []Tier{{Key: "now", Title: "Now", Actions: []string{"call"}}},
		},
		Ancillary: []AncillaryField{
			{ID: "kind", Kind: FieldSingle, Options: []FieldOption{{"a", "A"}, {"b", "B"}}, Required: true},
			{ID: "flags", Kind: FieldMulti, Options: []FieldOption{{"x", "X"}, {"y", "Y"}}},
			{ID: "yes", Kind: FieldBoolean},
		},
		AddOns: []AddOnModule{
			{ID: "m1", Title: "M1", When: FieldSelected("kind", "b")},
		},
	}
}

func TestBuild(t *testing.T) {
	in, err := Build(sampleDefinition())
	require.NoError(t, err)

	assert.True(t, in.Validated())
	assert.Equal(t, 6, in.MaxScore())
	assert.Equal(t, 3, in.QuestionCount())

	q, err := in.QuestionAt(2)
	require.NoError(t, err)
	assert.Equal(t, 2, q.Index)
	assert.Equal(t, "three", q.Prompt)

	_, err = in.QuestionAt(3)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = in.QuestionAt(-1)
	assert.ErrorIs(t, err, ErrNotFound)

	f, err := in.Field("flags")
	require.NoError(t, err)
	assert.Equal(t, FieldMulti, f.Kind)
	_, err = in.Field("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	fields := in.AncillaryFields()
	require.Len(t, fields, 3)
	assert.Equal(t, []string{"kind", "flags", "yes"}, []string{fields[0].ID, fields[1].ID, fields[2].ID})
}

func TestBuild_DetachedFromDefinition(t *testing.T) {
	def := sampleDefinition()
	in, err := Build(def)
	require.NoError(t, err)

	def.Scale[2].Value = 9
	def.Bands[0].Upper = 4
	def.Bands[1].Tiers[0].Actions[0] = "changed"
	*def.Crisis.Rule.Question = 0
	def.Crisis.Tiers[0].Title = "changed"
	def.Ancillary[0].Options[1].Value = "z"
	def.AddOns[0].When.Option = "a"

	assert.Equal(t, 2, in.Scale[2].Value)
	assert.Equal(t, 6, in.MaxScore())
	band, err := in.SeverityFor(3)
	require.NoError(t, err)
	assert.Equal(t, "high", band.Key)
	assert.Equal(t, "do something", in.Bands[1].Tiers[0].Actions[0])
	assert.Equal(t, 2, *in.Crisis.Rule.Question)
	assert.Equal(t, "Now", in.Crisis.Tiers[0].Title)

	f, err := in.Field("kind")
	require.NoError(t, err)
	assert.True(t, f.HasOption("b"))
	assert.True(t, in.AddOns[0].When.Eval(Responses{Ancillary: map[string]AncillaryValue{"kind": Choice("b")}}))
}

func TestBuild_QuestionScaleOverridesShared(t *testing.T) {
	def := sampleDefinition()
	def.Questions[0].Scale = ResponseScale{{0, "No"}, {5, "Yes"}}
	def.Bands[1].Upper = 9

	in, err := Build(def)
	require.NoError(t, err)
	assert.Equal(t, 9, in.MaxScore())
	assert.True(t, in.ScaleFor(in.Questions[0]).Contains(5))
	assert.False(t, in.ScaleFor(in.Questions[1]).Contains(5))
}

func TestBuild_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Instrument)
		want   string
	}{
		{"missing id", func(d *Instrument) { d.ID = "" }, "id is required"},
		{"no questions", func(d *Instrument) { d.Questions = nil }, "at least one question"},
		{"scale not increasing", func(d *Instrument) {
			d.Scale = ResponseScale{{0, "a"}, {2, "b"}, {1, "c"}}
		}, "strictly increase"},
		{"negative scale value", func(d *Instrument) {
			d.Scale = ResponseScale{{-1, "a"}, {0, "b"}, {2, "c"}}
		}, "negative"},
		{"band gap", func(d *Instrument) { d.Bands[1].Lower = 4 }, "gap"},
		{"band overlap", func(d *Instrument) { d.Bands[1].Lower = 2 }, "overlaps"},
		{"bands short of max", func(d *Instrument) { d.Bands[1].Upper = 5 }, "max score is 6"},
		{"bands not starting at zero", func(d *Instrument) { d.Bands[0].Lower = 1 }, "gap"},
		{"band without tiers", func(d *Instrument) { d.Bands[0].Tiers = nil }, "at least one tier"},
		{"duplicate band key", func(d *Instrument) { d.Bands[1].Key = "low" }, "duplicate key"},
		{"crisis question out of range", func(d *Instrument) { d.Crisis.Rule = QuestionAtLeast(7, 1) }, "out of range"},
		{"crisis bad comparator", func(d *Instrument) {
			d.Crisis.Rule = Rule{Question: new(int), Op: "~", Threshold: 1}
		}, "unknown comparator"},
		{"crisis without tiers", func(d *Instrument) { d.Crisis.Tiers = nil }, "needs at least one tier"},
		{"override without rule", func(d *Instrument) { d.Crisis = CrisisPlan{Override: true} }, "without a rule"},
		{"unknown field in rule", func(d *Instrument) { d.AddOns[0].When = FieldSelected("nope", "a") }, "unknown field"},
		{"unknown option in rule", func(d *Instrument) { d.AddOns[0].When = FieldSelected("kind", "z") }, "no option"},
		{"boolean with option", func(d *Instrument) { d.AddOns[0].When = FieldSelected("yes", "a") }, "takes no option"},
		{"mixed rule forms", func(d *Instrument) {
			r := QuestionAtLeast(0, 1)
			r.Any = []Rule{QuestionAtLeast(1, 1)}
			d.AddOns[0].When = r
		}, "exactly one of"},
		{"addon without gate", func(d *Instrument) { d.AddOns[0].When = Rule{} }, "when is required"},
		{"select without options", func(d *Instrument) { d.Ancillary[0].Options = nil }, "needs options"},
		{"unknown field kind", func(d *Instrument) { d.Ancillary[2].Kind = "text" }, "unknown kind"},
		{"duplicate field", func(d *Instrument) { d.Ancillary[1].ID = "kind" }, "duplicate id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := sampleDefinition()
			tt.mutate(&def)

			_, err := Build(def)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Contains(t, strings.Join(cfgErr.Problems, "\n"), tt.want)
		})
	}
}

func TestBuild_ReportsAllProblems(t *testing.T) {
	def := sampleDefinition()
	def.Title = ""
	def.Bands[1].Lower = 4

	_, err := Build(def)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.GreaterOrEqual(t, len(cfgErr.Problems), 2)
}

func TestSeverityFor_Boundaries(t *testing.T) {
	in, err := Build(sampleDefinition())
	require.NoError(t, err)

	tests := []struct {
		score int
		want  string
	}{
		{0, "low"},
		{2, "low"},
		{3, "high"},
		{6, "high"},
	}
	for _, tt := range tests {
		band, err := in.SeverityFor(tt.score)
		require.NoError(t, err)
		assert.Equal(t, tt.want, band.Key, "score %d", tt.score)
	}

	_, err = in.SeverityFor(7)
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = in.SeverityFor(-1)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestDefaultCatalog_BandsPartitionEveryScore(t *testing.T) {
	catalog, err := Default()
	require.NoError(t, err)

	ids := []string{}
	for _, in := range catalog.List() {
		ids = append(ids, in.ID)
		for s := 0; s <= in.MaxScore(); s++ {
			matches := 0
			for _, b := range in.Bands {
				if b.Contains(s) {
					matches++
				}
			}
			assert.Equal(t, 1, matches, "%s: score %d", in.ID, s)

			band, err := in.SeverityFor(s)
			require.NoError(t, err)
			assert.True(t, band.Contains(s))
		}
	}
	assert.Equal(t, []string{"depression", "grief", "perinatal"}, ids)
}

func TestDefaultCatalog_CutPoints(t *testing.T) {
	catalog, err := Default()
	require.NoError(t, err)

	tests := []struct {
		instrument string
		score      int
		want       string
	}{
		{"depression", 0, "None/Minimal"},
		{"depression", 4, "None/Minimal"},
		{"depression", 5, "Mild"},
		{"depression", 9, "Mild"},
		{"depression", 10, "Moderate"},
		{"depression", 14, "Moderate"},
		{"depression", 15, "Moderately Severe"},
		{"depression", 19, "Moderately Severe"},
		{"depression", 20, "Severe"},
		{"depression", 27, "Severe"},
		{"grief", 7, "Low"},
		{"grief", 8, "Moderate"},
		{"grief", 15, "Moderate"},
		{"grief", 16, "High"},
		{"perinatal", 9, "Low"},
		{"perinatal", 10, "Possible depression"},
		{"perinatal", 12, "Possible depression"},
		{"perinatal", 13, "Probable depression"},
		{"perinatal", 19, "Probable depression"},
		{"perinatal", 20, "Severe"},
	}
	for _, tt := range tests {
		in, err := catalog.Get(tt.instrument)
		require.NoError(t, err)
		band, err := in.SeverityFor(tt.score)
		require.NoError(t, err)
		assert.Equal(t, tt.want, band.Label, "%s score %d", tt.instrument, tt.score)
	}
}

func TestDefaultCatalog_Shapes(t *testing.T) {
	catalog, err := Default()
	require.NoError(t, err)

	depression, _ := catalog.Get("depression")
	assert.Equal(t, 9, depression.QuestionCount())
	assert.Equal(t, 27, depression.MaxScore())
	assert.True(t, depression.Crisis.Override)

	grief, _ := catalog.Get("grief")
	assert.Equal(t, 8, grief.QuestionCount())
	assert.Equal(t, 24, grief.MaxScore())
	assert.False(t, grief.Crisis.Override)

	perinatal, _ := catalog.Get("perinatal")
	assert.Equal(t, 10, perinatal.QuestionCount())
	assert.Equal(t, 30, perinatal.MaxScore())
	label, ok := perinatal.ScaleFor(perinatal.Questions[0]).Label(3)
	assert.True(t, ok)
	assert.Equal(t, "Not at all", label)

	_, err = catalog.Get("anxiety")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse(strings.NewReader("id: x\ntitle: X\nquestionz: []\n"))
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestLoadFS(t *testing.T) {
	good := `
id: tiny
title: Tiny
scale:
  - {value: 0, label: "No"}
  - {value: 1, label: "Yes"}
questions:
  - prompt: Only question
bands:
  - key: all
    label: All
    lower: 0
    upper: 1
    tiers:
      - {key: next, title: Next, actions: [rest]}
`
	bad := strings.Replace(good, "upper: 1", "upper: 0", 1)

	t.Run("loads valid definitions", func(t *testing.T) {
		fsys := fstest.MapFS{
			"defs/tiny.yaml": {Data: []byte(good)},
			"defs/README.md": {Data: []byte("ignored")},
		}
		catalog, err := LoadFS(fsys, "defs")
		require.NoError(t, err)
		require.Len(t, catalog.List(), 1)
		assert.Equal(t, "tiny", catalog.List()[0].ID)
	})

	t.Run("reports broken definitions", func(t *testing.T) {
		fsys := fstest.MapFS{"defs/tiny.yaml": {Data: []byte(bad)}}
		_, err := LoadFS(fsys, "defs")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.Contains(t, err.Error(), "tiny.yaml")
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		fsys := fstest.MapFS{
			"defs/a.yaml": {Data: []byte(good)},
			"defs/b.yml":  {Data: []byte(good)},
		}
		_, err := LoadFS(fsys, "defs")
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("rejects empty directory", func(t *testing.T) {
		fsys := fstest.MapFS{"defs/notes.txt": {Data: []byte("x")}}
		_, err := LoadFS(fsys, "defs")
		assert.ErrorIs(t, err, ErrConfiguration)
	})
}

func TestRuleEval(t *testing.T) {
	resp := Responses{
		Answers:   map[int]int{0: 2, 1: 0},
		Ancillary: map[string]AncillaryValue{"kind": Choice("b"), "flags": Choices("x"), "yes": Flag(false)},
	}

	tests := []struct {
		name string
		rule Rule
		want bool
	}{
		{"gte met", QuestionAtLeast(0, 2), true},
		{"gte not met", QuestionAtLeast(1, 1), false},
		{"absent answer with gte", QuestionAtLeast(2, 0), false},
		{"absent answer with lt", Rule{Question: intPtr(2), Op: OpLT, Threshold: 3}, false},
		{"eq", Rule{Question: intPtr(1), Op: OpEQ, Threshold: 0}, true},
		{"single selected", FieldSelected("kind", "b"), true},
		{"single not selected", FieldSelected("kind", "a"), false},
		{"multi selected", FieldSelected("flags", "x"), true},
		{"multi not selected", FieldSelected("flags", "y"), false},
		{"boolean false", FieldTrue("yes"), false},
		{"absent field", FieldTrue("other"), false},
		{"any", AnyOf(QuestionAtLeast(1, 1), FieldSelected("kind", "b")), true},
		{"all", AllOf(QuestionAtLeast(0, 1), FieldSelected("kind", "a")), false},
		{"empty rule", Rule{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Eval(resp))
		})
	}
}

func TestAncillaryField_CheckAndDecode(t *testing.T) {
	single := AncillaryField{ID: "kind", Kind: FieldSingle, Options: []FieldOption{{"a", "A"}, {"b", "B"}}}
	multi := AncillaryField{ID: "flags", Kind: FieldMulti, Options: []FieldOption{{"x", "X"}, {"y", "Y"}}}
	boolean := AncillaryField{ID: "yes", Kind: FieldBoolean}

	v, err := single.Decode(json.RawMessage(`"a"`))
	require.NoError(t, err)
	assert.Equal(t, Choice("a"), v)

	_, err = single.Decode(json.RawMessage(`"z"`))
	assert.Error(t, err)
	_, err = single.Decode(json.RawMessage(`true`))
	assert.Error(t, err)

	v, err = multi.Decode(json.RawMessage(`["x","y"]`))
	require.NoError(t, err)
	assert.True(t, v.Selected("y"))

	_, err = multi.Decode(json.RawMessage(`["x","x"]`))
	assert.Error(t, err)

	v, err = boolean.Decode(json.RawMessage(`true`))
	require.NoError(t, err)
	assert.Equal(t, Flag(true), v)

	assert.Error(t, single.Check(Flag(true)))

	v, err = multi.ParseText("x, y")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, v.Choices)
	_, err = boolean.ParseText("maybe")
	assert.Error(t, err)
}

func TestAncillaryValue_JSON(t *testing.T) {
	in := map[string]AncillaryValue{
		"kind":  Choice("a"),
		"flags": Choices("x", "y"),
		"none":  Choices(),
		"yes":   Flag(true),
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"a","flags":["x","y"],"none":[],"yes":true}`, string(data))

	var out map[string]AncillaryValue
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func intPtr(i int) *int { return &i }
