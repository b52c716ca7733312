package exam

import (
	"github.com/skillpath/skillpath-lms/internal/grading"
)

// ScoreResult is the scorer's verdict for one submission.
type ScoreResult struct {
	Score  int  `json:"score"`
	Passed bool `json:"passed"`
}

// Scorer computes an integer percentage score for a submission. It is pure:
// identical inputs always yield identical results.
type Scorer struct {
	grader grading.Grader
}

func NewScorer() *Scorer {
	return &Scorer{grader: grading.NewDefaultGrader()}
}

// Score grades a submission against the exam's answer key. Auto-graded
// questions are counted by exact match; unanswered questions count as wrong
// and never leave the denominator. Exams containing essay questions must
// arrive pre-scored by the external grading workflow; the scorer only
// validates the range and derives pass/fail.
func (s *Scorer) Score(e Exam, sub Submission) (ScoreResult, error) {
	total := e.TotalQuestions()
	if total == 0 {
		return ScoreResult{}, configErrorf("exam %s has no questions", e.ID)
	}

	if e.HasEssay() {
		if sub.PreScore == nil {
			return ScoreResult{}, configErrorf("exam %s contains essay questions and requires a pre-scored submission", e.ID)
		}
		score := *sub.PreScore
		if score < 0 || score > 100 {
			return ScoreResult{}, configErrorf("pre-score %d out of range [0,100]", score)
		}
		return ScoreResult{Score: score, Passed: score >= e.PassingScore}, nil
	}

	correct := 0
	for _, q := range e.Questions {
		res, err := s.grader.Grade(grading.Q{Type: q.Type, AnswerKey: q.AnswerKey}, sub.Answers[q.ID])
		if err != nil {
			return ScoreResult{}, configErrorf("question %s: %v", q.ID, err)
		}
		if res.Correct {
			correct++
		}
	}

	score := roundPct(correct, total)
	return ScoreResult{Score: score, Passed: score >= e.PassingScore}, nil
}

// roundPct is round(100*n/d) in integer arithmetic, half away from zero.
func roundPct(n, d int) int {
	return (100*n + d/2) / d
}
