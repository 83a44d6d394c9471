package assessment

import (
	"time"

	"therapy-intake/internal/instrument"
	"therapy-intake/internal/recommend"
)

// Result is the payload handed to the booking and persistence layers once a
// session completes. Finalize returns copies, so holders cannot alter the
// session's own snapshot.
type Result struct {
	InstrumentID     string                               `json:"instrument_id"`
	TotalScore       int                                  `json:"total_score"`
	MaxScore         int                                  `json:"max_score"`
	SeverityKey      string                               `json:"severity_key"`
	SeverityLabel    string                               `json:"severity_label"`
	CrisisFlag       bool                                 `json:"crisis_flag"`
	Recommendations  recommend.Set                        `json:"recommendations"`
	AncillaryAnswers map[string]instrument.AncillaryValue `json:"ancillary_answers"`
	CompletedAt      time.Time                            `json:"completed_at"`
}

// Clone returns a deep copy of r.
func (r Result) Clone() Result {
	out := r
	out.Recommendations = r.Recommendations.Clone()
	out.AncillaryAnswers = make(map[string]instrument.AncillaryValue, len(r.AncillaryAnswers))
	for k, v := range r.AncillaryAnswers {
		out.AncillaryAnswers[k] = v.Clone()
	}
	return out
}
