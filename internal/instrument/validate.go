package instrument

import "fmt"

// validate collects every problem in the definition rather than stopping at
// the first one, so a broken file can be fixed in a single pass.
func validate(in *Instrument) []string {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if in.ID == "" {
		add("id is required")
	}
	if in.Title == "" {
		add("title is required")
	}
	if len(in.Questions) == 0 {
		add("at least one question is required")
	}

	sharedUsed := false
	for i, q := range in.Questions {
		if q.Prompt == "" {
			add("question %d: prompt is required", i)
		}
		if len(q.Scale) == 0 {
			sharedUsed = true
			continue
		}
		for _, p := range validateScale(q.Scale) {
			add("question %d scale: %s", i, p)
		}
	}
	if sharedUsed || len(in.Scale) > 0 {
		for _, p := range validateScale(in.Scale) {
			add("scale: %s", p)
		}
	}

	// The partition check needs a trustworthy max score.
	maxScore := 0
	for _, q := range in.Questions {
		if len(q.Scale) > 0 {
			maxScore += q.Scale.Max()
		} else {
			maxScore += in.Scale.Max()
		}
	}
	problems = append(problems, validateBands(in.Bands, maxScore)...)

	fieldIDs := make(map[string]bool, len(in.Ancillary))
	for i, f := range in.Ancillary {
		if f.ID == "" {
			add("ancillary[%d]: id is required", i)
		} else if fieldIDs[f.ID] {
			add("ancillary[%d]: duplicate id %q", i, f.ID)
		}
		fieldIDs[f.ID] = true
		switch f.Kind {
		case FieldSingle, FieldMulti:
			if len(f.Options) == 0 {
				add("ancillary %q: %s needs options", f.ID, f.Kind)
			}
			seen := make(map[string]bool, len(f.Options))
			for _, opt := range f.Options {
				if opt.Value == "" {
					add("ancillary %q: option value is required", f.ID)
				} else if seen[opt.Value] {
					add("ancillary %q: duplicate option %q", f.ID, opt.Value)
				}
				seen[opt.Value] = true
			}
		case FieldBoolean:
			if len(f.Options) > 0 {
				add("ancillary %q: boolean takes no options", f.ID)
			}
		default:
			add("ancillary %q: unknown kind %q", f.ID, f.Kind)
		}
	}

	if in.Crisis.Rule.IsZero() {
		if in.Crisis.Override || len(in.Crisis.Tiers) > 0 {
			add("crisis: tiers or override given without a rule")
		}
	} else {
		problems = append(problems, validateRule(in, in.Crisis.Rule, "crisis.rule")...)
		if len(in.Crisis.Tiers) == 0 {
			add("crisis: a rule needs at least one tier")
		}
		for _, p := range validateTiers(in.Crisis.Tiers) {
			add("crisis: %s", p)
		}
	}

	addOnIDs := make(map[string]bool, len(in.AddOns))
	for i, m := range in.AddOns {
		if m.ID == "" {
			add("addons[%d]: id is required", i)
		} else if addOnIDs[m.ID] {
			add("addons[%d]: duplicate id %q", i, m.ID)
		}
		addOnIDs[m.ID] = true
		if m.Title == "" {
			add("addon %q: title is required", m.ID)
		}
		if m.When.IsZero() {
			add("addon %q: when is required", m.ID)
			continue
		}
		problems = append(problems, validateRule(in, m.When, fmt.Sprintf("addon %q when", m.ID))...)
	}

	return problems
}

func validateScale(s ResponseScale) []string {
	if len(s) == 0 {
		return []string{"at least one option is required"}
	}
	var problems []string
	for i, opt := range s {
		if opt.Value < 0 {
			problems = append(problems, fmt.Sprintf("value %d is negative", opt.Value))
		}
		if opt.Label == "" {
			problems = append(problems, fmt.Sprintf("value %d has no label", opt.Value))
		}
		if i > 0 && opt.Value <= s[i-1].Value {
			problems = append(problems, fmt.Sprintf("values must strictly increase (%d after %d)", opt.Value, s[i-1].Value))
		}
	}
	return problems
}

// validateBands checks that the bands partition [0, maxScore] with no gaps or
// overlaps, in ascending order.
func validateBands(bands []SeverityBand, maxScore int) []string {
	if len(bands) == 0 {
		return []string{"at least one severity band is required"}
	}
	var problems []string
	keys := make(map[string]bool, len(bands))
	next := 0
	for i, b := range bands {
		if b.Key == "" {
			problems = append(problems, fmt.Sprintf("band %d: key is required", i))
		} else if keys[b.Key] {
			problems = append(problems, fmt.Sprintf("band %d: duplicate key %q", i, b.Key))
		}
		keys[b.Key] = true
		if b.Label == "" {
			problems = append(problems, fmt.Sprintf("band %q: label is required", b.Key))
		}
		if b.Lower > b.Upper {
			problems = append(problems, fmt.Sprintf("band %q: lower %d above upper %d", b.Key, b.Lower, b.Upper))
		}
		switch {
		case b.Lower > next:
			problems = append(problems, fmt.Sprintf("band %q: gap, scores %d-%d have no band", b.Key, next, b.Lower-1))
		case b.Lower < next:
			problems = append(problems, fmt.Sprintf("band %q: overlaps previous band at %d", b.Key, b.Lower))
		}
		next = b.Upper + 1
		if len(b.Tiers) == 0 {
			problems = append(problems, fmt.Sprintf("band %q: at least one tier is required", b.Key))
		}
		for _, p := range validateTiers(b.Tiers) {
			problems = append(problems, fmt.Sprintf("band %q: %s", b.Key, p))
		}
	}
	if last := bands[len(bands)-1]; last.Upper != maxScore {
		problems = append(problems, fmt.Sprintf("bands end at %d, max score is %d", last.Upper, maxScore))
	}
	return problems
}

func validateTiers(tiers []Tier) []string {
	var problems []string
	for i, t := range tiers {
		if t.Key == "" || t.Title == "" {
			problems = append(problems, fmt.Sprintf("tier %d: key and title are required", i))
		}
		if len(t.Actions) == 0 {
			problems = append(problems, fmt.Sprintf("tier %q: at least one action is required", t.Key))
		}
	}
	return problems
}
