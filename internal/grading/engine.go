package grading

import (
	"errors"
	"strings"
)

// Q is the minimal view of a question needed for grading.
type Q struct {
	Type      string
	AnswerKey string
}

// Result is the outcome of grading a single response.
type Result struct {
	Correct     bool
	NeedsManual bool // true when the question type requires human review
}

// Strategy grades a single question response.
type Strategy interface {
	Grade(q Q, response string) (Result, error)
}

// Grader routes by question type to the matching Strategy.
type Grader interface {
	Grade(q Q, response string) (Result, error)
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(q Q, response string) (Result, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{}, errors.New("unknown question type: " + q.Type)
	}
	return s.Grade(q, response)
}

// NewDefaultGrader installs the built-in strategies.
func NewDefaultGrader() Grader {
	return &defaultGrader{
		strategies: map[string]Strategy{
			"mcq_single": exactMatchStrategy{},
			"true_false": exactMatchStrategy{caseFold: true},
			"essay":      essayStrategy{},
		},
	}
}

// --- Strategies ---

type exactMatchStrategy struct{ caseFold bool }

func (s exactMatchStrategy) Grade(q Q, response string) (Result, error) {
	resp := strings.TrimSpace(response)
	key := q.AnswerKey
	if s.caseFold {
		resp = strings.ToLower(resp)
		key = strings.ToLower(key)
	}
	return Result{Correct: key != "" && resp == key}, nil
}

type essayStrategy struct{}

func (essayStrategy) Grade(Q, string) (Result, error) {
	return Result{NeedsManual: true}, nil
}
