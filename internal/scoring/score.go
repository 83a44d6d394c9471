// Package scoring computes totals, severity and crisis flags from answers.
// Everything here is a pure function of its inputs and safe on partial
// answer sets.
package scoring

import (
	"therapy-intake/internal/instrument"
)

// Result is a score snapshot. Mid-session snapshots count unanswered
// questions as zero and must not be treated as final.
type Result struct {
	TotalScore int                     `json:"total_score"`
	MaxScore   int                     `json:"max_score"`
	Severity   instrument.SeverityBand `json:"severity"`
	CrisisFlag bool                    `json:"crisis_flag"`
	Answered   int                     `json:"answered"`
	Questions  int                     `json:"questions"`
}

// Partial reports whether some primary questions were still unanswered.
func (r Result) Partial() bool {
	return r.Answered < r.Questions
}

// Score sums every answer present.
func Score(answers map[int]int) int {
	total := 0
	for _, v := range answers {
		total += v
	}
	return total
}

// Evaluate scores resp against in. Answers outside the instrument's question
// range are ignored.
func Evaluate(in *instrument.Instrument, resp instrument.Responses) (Result, error) {
	primary := make(map[int]int, len(resp.Answers))
	for i, v := range resp.Answers {
		if i >= 0 && i < in.QuestionCount() {
			primary[i] = v
		}
	}

	total := Score(primary)
	band, err := in.SeverityFor(total)
	if err != nil {
		return Result{}, err
	}
	return Result{
		TotalScore: total,
		MaxScore:   in.MaxScore(),
		Severity:   band,
		CrisisFlag: DetectCrisis(in, resp),
		Answered:   len(primary),
		Questions:  in.QuestionCount(),
	}, nil
}
