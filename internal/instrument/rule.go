package instrument

import "fmt"

// Comparator compares an answer value against a threshold.
type Comparator string

const (
	OpGTE Comparator = ">="
	OpGT  Comparator = ">"
	OpEQ  Comparator = "=="
	OpLTE Comparator = "<="
	OpLT  Comparator = "<"
)

func (c Comparator) valid() bool {
	switch c {
	case OpGTE, OpGT, OpEQ, OpLTE, OpLT:
		return true
	}
	return false
}

func (c Comparator) compare(value, threshold int) bool {
	switch c {
	case OpGTE:
		return value >= threshold
	case OpGT:
		return value > threshold
	case OpEQ:
		return value == threshold
	case OpLTE:
		return value <= threshold
	case OpLT:
		return value < threshold
	}
	return false
}

// Responses is the answer state rules are evaluated against.
type Responses struct {
	Answers   map[int]int
	Ancillary map[string]AncillaryValue
}

// Rule is a boolean expression over answers. Exactly one form is set:
//
//	any:      at least one child rule holds
//	all:      every child rule holds
//	question: the answer at that index compares true against threshold
//	field:    the ancillary field has option selected, or is a true boolean
//
// A missing answer never satisfies a term, whatever the comparator.
type Rule struct {
	Any       []Rule     `yaml:"any,omitempty" json:"any,omitempty"`
	All       []Rule     `yaml:"all,omitempty" json:"all,omitempty"`
	Question  *int       `yaml:"question,omitempty" json:"question,omitempty"`
	Op        Comparator `yaml:"op,omitempty" json:"op,omitempty"`
	Threshold int        `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Field     string     `yaml:"field,omitempty" json:"field,omitempty"`
	Option    string     `yaml:"option,omitempty" json:"option,omitempty"`
}

func (r Rule) clone() Rule {
	out := r
	if r.Question != nil {
		q := *r.Question
		out.Question = &q
	}
	out.Any = cloneRules(r.Any)
	out.All = cloneRules(r.All)
	return out
}

func cloneRules(rules []Rule) []Rule {
	if rules == nil {
		return nil
	}
	out := make([]Rule, len(rules))
	for i, r := range rules {
		out[i] = r.clone()
	}
	return out
}

// IsZero reports whether the rule is empty. An empty rule never holds.
func (r Rule) IsZero() bool {
	return len(r.Any) == 0 && len(r.All) == 0 && r.Question == nil && r.Field == ""
}

// Eval evaluates the rule. It never mutates resp and is safe on partial answers.
func (r Rule) Eval(resp Responses) bool {
	switch {
	case len(r.Any) > 0:
		for _, child := range r.Any {
			if child.Eval(resp) {
				return true
			}
		}
		return false
	case len(r.All) > 0:
		for _, child := range r.All {
			if !child.Eval(resp) {
				return false
			}
		}
		return true
	case r.Question != nil:
		v, ok := resp.Answers[*r.Question]
		return ok && r.Op.compare(v, r.Threshold)
	case r.Field != "":
		v, ok := resp.Ancillary[r.Field]
		if !ok {
			return false
		}
		if r.Option != "" {
			return v.Selected(r.Option)
		}
		return v.Kind == FieldBoolean && v.Flag
	}
	return false
}

// QuestionAtLeast builds the common "item i >= threshold" term.
func QuestionAtLeast(index, threshold int) Rule {
	return Rule{Question: &index, Op: OpGTE, Threshold: threshold}
}

// FieldSelected builds a term that holds when option is chosen on field.
func FieldSelected(field, option string) Rule {
	return Rule{Field: field, Option: option}
}

// FieldTrue builds a term that holds when a boolean field is true.
func FieldTrue(field string) Rule {
	return Rule{Field: field}
}

// AnyOf combines rules with OR.
func AnyOf(rules ...Rule) Rule {
	return Rule{Any: rules}
}

// AllOf combines rules with AND.
func AllOf(rules ...Rule) Rule {
	return Rule{All: rules}
}

func validateRule(in *Instrument, r Rule, path string) []string {
	forms := 0
	if len(r.Any) > 0 {
		forms++
	}
	if len(r.All) > 0 {
		forms++
	}
	if r.Question != nil {
		forms++
	}
	if r.Field != "" {
		forms++
	}
	if forms != 1 {
		return []string{fmt.Sprintf("%s: rule must have exactly one of any, all, question or field", path)}
	}

	var problems []string
	switch {
	case len(r.Any) > 0:
		for i, c := range r.Any {
			problems = append(problems, validateRule(in, c, fmt.Sprintf("%s.any[%d]", path, i))...)
		}
	case len(r.All) > 0:
		for i, c := range r.All {
			problems = append(problems, validateRule(in, c, fmt.Sprintf("%s.all[%d]", path, i))...)
		}
	case r.Question != nil:
		q := *r.Question
		if q < 0 || q >= len(in.Questions) {
			problems = append(problems, fmt.Sprintf("%s: question %d out of range", path, q))
		}
		if !r.Op.valid() {
			problems = append(problems, fmt.Sprintf("%s: unknown comparator %q", path, r.Op))
		}
		if r.Field != "" || r.Option != "" {
			problems = append(problems, fmt.Sprintf("%s: question term cannot name a field or option", path))
		}
	default:
		var field *AncillaryField
		for i := range in.Ancillary {
			if in.Ancillary[i].ID == r.Field {
				field = &in.Ancillary[i]
				break
			}
		}
		switch {
		case field == nil:
			problems = append(problems, fmt.Sprintf("%s: unknown field %q", path, r.Field))
		case field.Kind == FieldBoolean && r.Option != "":
			problems = append(problems, fmt.Sprintf("%s: boolean field %q takes no option", path, r.Field))
		case field.Kind != FieldBoolean && !field.HasOption(r.Option):
			problems = append(problems, fmt.Sprintf("%s: field %q has no option %q", path, r.Field, r.Option))
		}
		if r.Op != "" {
			problems = append(problems, fmt.Sprintf("%s: field term takes no comparator", path))
		}
	}
	return problems
}
