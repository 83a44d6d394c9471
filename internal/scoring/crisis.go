package scoring

import "therapy-intake/internal/instrument"

// DetectCrisis evaluates the instrument's crisis rule against the answers
// given so far. Absent answers never trigger it. Instruments without a crisis
// rule never report a crisis.
func DetectCrisis(in *instrument.Instrument, resp instrument.Responses) bool {
	return in.Crisis.Rule.Eval(resp)
}
