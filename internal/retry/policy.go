package retry

import (
	"context"
	"errors"
	"net"
	"time"

	"skincare-backend/internal/recommendations"
	"skincare-backend/internal/vision"
)

// Class groups errors that share a retry budget.
type Class string

const (
	ClassValidation     Class = "validation"
	ClassParse          Class = "parse"
	ClassSchema         Class = "schema"
	ClassTimeout        Class = "timeout"
	ClassAnalysis       Class = "analysis"
	ClassRecommendation Class = "recommendation"
	ClassUnexpected     Class = "unexpected"
)

// Rule is the budget for one error class. MaxAttempts counts the first try.
type Rule struct {
	Retryable   bool
	MaxAttempts int
	BaseDelay   time.Duration
	Exponential bool
}

// Delay returns the wait before attempt+1, given that attempt just failed.
func (r Rule) Delay(attempt int) time.Duration {
	if !r.Exponential || attempt <= 1 {
		return r.BaseDelay
	}
	d := r.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

// Policy maps error classes to rules.
type Policy struct {
	Rules map[Class]Rule
}

// DefaultPolicy is the production retry table.
func DefaultPolicy() Policy {
	return Policy{Rules: map[Class]Rule{
		ClassAnalysis:       {Retryable: true, MaxAttempts: 3, BaseDelay: 2 * time.Second, Exponential: true},
		ClassRecommendation: {Retryable: true, MaxAttempts: 2, BaseDelay: 5 * time.Second},
		ClassTimeout:        {Retryable: true, MaxAttempts: 2, BaseDelay: 10 * time.Second},
		ClassValidation:     {MaxAttempts: 1},
		ClassParse:          {MaxAttempts: 1},
		ClassSchema:         {MaxAttempts: 1},
		ClassUnexpected:     {MaxAttempts: 1},
	}}
}

// Decision is the outcome of a failed attempt.
type Decision struct {
	Class Class
	Retry bool
	Delay time.Duration
}

// Decide reports whether err may be retried. failures is how many times the
// class of err has failed so far, this failure included. Each class spends
// its own budget.
func (p Policy) Decide(err error, failures int) Decision {
	return p.DecideClass(Classify(err), failures)
}

// DecideClass is Decide for an already classified failure.
func (p Policy) DecideClass(class Class, failures int) Decision {
	if failures < 1 {
		failures = 1
	}
	rule, ok := p.Rules[class]
	if !ok || !rule.Retryable || failures >= rule.MaxAttempts {
		return Decision{Class: class}
	}
	return Decision{Class: class, Retry: true, Delay: rule.Delay(failures)}
}

// Classify maps err onto its retry class. Timeouts win over the stage error
// wrapping them.
func Classify(err error) Class {
	var (
		validationErr *vision.ValidationError
		parseErr      *vision.ParseError
		schemaErr     *vision.SchemaError
		analysisErr   *vision.AnalysisError
		recErr        *recommendations.RecommendationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr):
		return ClassValidation
	case errors.As(err, &parseErr):
		return ClassParse
	case errors.As(err, &schemaErr):
		return ClassSchema
	case isTimeout(err):
		return ClassTimeout
	case errors.As(err, &analysisErr):
		return ClassAnalysis
	case errors.As(err, &recErr):
		return ClassRecommendation
	default:
		return ClassUnexpected
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
