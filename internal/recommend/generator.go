// Package recommend turns a score into a tiered action plan plus the add-on
// modules whose gates hold.
package recommend

import (
	"fmt"

	"therapy-intake/internal/instrument"
	"therapy-intake/internal/scoring"
)

// Tier is one group of actions in display order.
type Tier struct {
	Key       string   `json:"key"`
	Title     string   `json:"title"`
	Actions   []string `json:"actions"`
	Emergency bool     `json:"emergency,omitempty"`
}

// AddOn is an extra recommendation block.
type AddOn struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Set is the generated recommendation plan.
type Set struct {
	Tiers  []Tier  `json:"tiers"`
	AddOns []AddOn `json:"add_ons"`
}

// Emergency reports whether the plan leads with crisis actions.
func (s Set) Emergency() bool {
	return len(s.Tiers) > 0 && s.Tiers[0].Emergency
}

// Clone returns a deep copy of s.
func (s Set) Clone() Set {
	out := Set{
		Tiers:  make([]Tier, len(s.Tiers)),
		AddOns: make([]AddOn, len(s.AddOns)),
	}
	for i, t := range s.Tiers {
		t.Actions = append([]string{}, t.Actions...)
		out.Tiers[i] = t
	}
	copy(out.AddOns, s.AddOns)
	return out
}

// Generate builds the plan for a scored response set.
//
// When the crisis flag is set the instrument's crisis tiers come first. If the
// instrument marks its crisis plan as an override, they are the only tiers.
// Add-ons are appended in declared order for every gate that holds.
func Generate(in *instrument.Instrument, score scoring.Result, resp instrument.Responses) (Set, error) {
	band, ok := in.Band(score.Severity.Key)
	if !ok {
		return Set{}, &instrument.ConfigurationError{
			Instrument: in.ID,
			Problems:   []string{fmt.Sprintf("unknown severity band %q", score.Severity.Key)},
		}
	}

	set := Set{Tiers: []Tier{}, AddOns: []AddOn{}}
	if score.CrisisFlag && len(in.Crisis.Tiers) > 0 {
		set.Tiers = appendTiers(set.Tiers, in.Crisis.Tiers, true)
		if !in.Crisis.Override {
			set.Tiers = appendTiers(set.Tiers, band.Tiers, false)
		}
	} else {
		set.Tiers = appendTiers(set.Tiers, band.Tiers, false)
	}

	for _, m := range in.AddOns {
		if m.When.Eval(resp) {
			set.AddOns = append(set.AddOns, AddOn{ID: m.ID, Title: m.Title, Body: m.Body})
		}
	}
	return set, nil
}

func appendTiers(dst []Tier, src []instrument.Tier, emergency bool) []Tier {
	for _, t := range src {
		dst = append(dst, Tier{
			Key:       t.Key,
			Title:     t.Title,
			Actions:   append([]string{}, t.Actions...),
			Emergency: emergency,
		})
	}
	return dst
}
