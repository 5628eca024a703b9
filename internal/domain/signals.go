package domain

import (
	"fmt"
	"math"
	"strings"
)

// Category is the functional area a support request belongs to
type Category string

const (
	CategoryBilling   Category = "BILLING"
	CategoryTechnical Category = "TECHNICAL"
	CategoryAccount   Category = "ACCOUNT"
	CategoryGeneral   Category = "GENERAL"
)

// Priority is the urgency assigned during triage
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Sentiment is the requester's tone as judged during triage
type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
	SentimentNegative Sentiment = "NEGATIVE"
)

// RiskLevel is the business risk of answering the request without a human
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// FallbackSummary is the summary carried by the fallback signal set.
const FallbackSummary = "AI parsing failed."

// ClassificationSignals is the validated triage outcome for one ticket.
// Fallback is true when the classifier output could not be trusted and the
// fixed safe default was substituted.
type ClassificationSignals struct {
	Category   Category
	Priority   Priority
	Sentiment  Sentiment
	Risk       RiskLevel
	Confidence float64
	Summary    string
	Fallback   bool
}

// FallbackSignals returns the fixed safe default used when classification fails.
func FallbackSignals() ClassificationSignals {
	return ClassificationSignals{
		Category:   CategoryGeneral,
		Priority:   PriorityMedium,
		Sentiment:  SentimentNeutral,
		Risk:       RiskLow,
		Confidence: 0.5,
		Summary:    FallbackSummary,
		Fallback:   true,
	}
}

// ValidateSignals validates every axis of a ClassificationSignals value
func ValidateSignals(s ClassificationSignals) error {
	if !IsValidCategory(s.Category) {
		return NewDomainErrorWithCause(ErrCodeValidation, ErrInvalidSignals.Message, fmt.Errorf("category is invalid: %q", s.Category))
	}
	if !IsValidPriority(s.Priority) {
		return NewDomainErrorWithCause(ErrCodeValidation, ErrInvalidSignals.Message, fmt.Errorf("priority is invalid: %q", s.Priority))
	}
	if !IsValidSentiment(s.Sentiment) {
		return NewDomainErrorWithCause(ErrCodeValidation, ErrInvalidSignals.Message, fmt.Errorf("sentiment is invalid: %q", s.Sentiment))
	}
	if !IsValidRiskLevel(s.Risk) {
		return NewDomainErrorWithCause(ErrCodeValidation, ErrInvalidSignals.Message, fmt.Errorf("risk is invalid: %q", s.Risk))
	}
	if math.IsNaN(s.Confidence) || s.Confidence < 0 || s.Confidence > 1 {
		return NewDomainErrorWithCause(ErrCodeValidation, ErrInvalidSignals.Message, fmt.Errorf("confidence out of range: %v", s.Confidence))
	}
	if strings.TrimSpace(s.Summary) == "" {
		return NewDomainErrorWithCause(ErrCodeValidation, ErrInvalidSignals.Message, fmt.Errorf("summary is required"))
	}
	return nil
}

// IsValidCategory checks if a Category is one of the known values
func IsValidCategory(c Category) bool {
	switch c {
	case CategoryBilling, CategoryTechnical, CategoryAccount, CategoryGeneral:
		return true
	}
	return false
}

// IsValidPriority checks if a Priority is one of the known values
func IsValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// IsValidSentiment checks if a Sentiment is one of the known values
func IsValidSentiment(s Sentiment) bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// IsValidRiskLevel checks if a RiskLevel is one of the known values
func IsValidRiskLevel(r RiskLevel) bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}
