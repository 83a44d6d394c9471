package instrument

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// FieldKind is the input type of an ancillary field.
type FieldKind string

const (
	FieldSingle  FieldKind = "single_select"
	FieldMulti   FieldKind = "multi_select"
	FieldBoolean FieldKind = "boolean"
)

// FieldOption is a selectable value of a single or multi select field.
type FieldOption struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// AncillaryField is an unscored follow-up input collected after the primary
// questions and consumed only by recommendation and crisis rules.
type AncillaryField struct {
	ID       string        `yaml:"id" json:"id"`
	Kind     FieldKind     `yaml:"kind" json:"kind"`
	Prompt   string        `yaml:"prompt" json:"prompt"`
	Options  []FieldOption `yaml:"options,omitempty" json:"options,omitempty"`
	Required bool          `yaml:"required,omitempty" json:"required,omitempty"`
}

// HasOption reports whether value is a declared option of the field.
func (f AncillaryField) HasOption(value string) bool {
	for _, opt := range f.Options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

// Check verifies that v matches the field's kind and options.
func (f AncillaryField) Check(v AncillaryValue) error {
	if v.Kind != f.Kind {
		return fmt.Errorf("field %q expects %s, got %s", f.ID, f.Kind, v.Kind)
	}
	switch f.Kind {
	case FieldSingle:
		if !f.HasOption(v.Choice) {
			return fmt.Errorf("field %q has no option %q", f.ID, v.Choice)
		}
	case FieldMulti:
		seen := make(map[string]bool, len(v.Choices))
		for _, c := range v.Choices {
			if !f.HasOption(c) {
				return fmt.Errorf("field %q has no option %q", f.ID, c)
			}
			if seen[c] {
				return fmt.Errorf("field %q: option %q selected twice", f.ID, c)
			}
			seen[c] = true
		}
	}
	return nil
}

// Decode reads a JSON value shaped for the field's kind: a string for single
// select, an array of strings for multi select and a bool for boolean.
func (f AncillaryField) Decode(raw json.RawMessage) (AncillaryValue, error) {
	var v AncillaryValue
	switch f.Kind {
	case FieldSingle:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return v, fmt.Errorf("field %q expects a string: %w", f.ID, err)
		}
		v = Choice(s)
	case FieldMulti:
		var ss []string
		if err := json.Unmarshal(raw, &ss); err != nil {
			return v, fmt.Errorf("field %q expects a list of strings: %w", f.ID, err)
		}
		v = Choices(ss...)
	case FieldBoolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return v, fmt.Errorf("field %q expects a boolean: %w", f.ID, err)
		}
		v = Flag(b)
	default:
		return v, fmt.Errorf("field %q has unknown kind %q", f.ID, f.Kind)
	}
	return v, f.Check(v)
}

// ParseText reads a command-line value: an option for single select, a
// comma-separated list for multi select, and true/false for boolean.
func (f AncillaryField) ParseText(s string) (AncillaryValue, error) {
	var v AncillaryValue
	switch f.Kind {
	case FieldSingle:
		v = Choice(strings.TrimSpace(s))
	case FieldMulti:
		var choices []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				choices = append(choices, part)
			}
		}
		v = Choices(choices...)
	case FieldBoolean:
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return v, fmt.Errorf("field %q expects true or false: %w", f.ID, err)
		}
		v = Flag(b)
	default:
		return v, fmt.Errorf("field %q has unknown kind %q", f.ID, f.Kind)
	}
	return v, f.Check(v)
}

// AncillaryValue is an answer to an ancillary field. Only the member matching
// Kind is meaningful.
type AncillaryValue struct {
	Kind    FieldKind
	Choice  string
	Choices []string
	Flag    bool
}

func Choice(value string) AncillaryValue {
	return AncillaryValue{Kind: FieldSingle, Choice: value}
}

func Choices(values ...string) AncillaryValue {
	return AncillaryValue{Kind: FieldMulti, Choices: append([]string{}, values...)}
}

func Flag(b bool) AncillaryValue {
	return AncillaryValue{Kind: FieldBoolean, Flag: b}
}

// Selected reports whether option was chosen.
func (v AncillaryValue) Selected(option string) bool {
	switch v.Kind {
	case FieldSingle:
		return v.Choice == option
	case FieldMulti:
		for _, c := range v.Choices {
			if c == option {
				return true
			}
		}
	}
	return false
}

// Clone returns a copy that shares no memory with v.
func (v AncillaryValue) Clone() AncillaryValue {
	if v.Choices != nil {
		v.Choices = append([]string{}, v.Choices...)
	}
	return v
}

func (v AncillaryValue) String() string {
	switch v.Kind {
	case FieldSingle:
		return v.Choice
	case FieldMulti:
		return strings.Join(v.Choices, ", ")
	case FieldBoolean:
		if v.Flag {
			return "yes"
		}
		return "no"
	}
	return ""
}

func (v AncillaryValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case FieldSingle:
		return json.Marshal(v.Choice)
	case FieldMulti:
		if v.Choices == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.Choices)
	case FieldBoolean:
		return json.Marshal(v.Flag)
	}
	return []byte("null"), nil
}

func (v *AncillaryValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("empty ancillary value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Choice(s)
	case '[':
		var ss []string
		if err := json.Unmarshal(data, &ss); err != nil {
			return err
		}
		*v = Choices(ss...)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Flag(b)
	default:
		return fmt.Errorf("unsupported ancillary value %s", data)
	}
	return nil
}
