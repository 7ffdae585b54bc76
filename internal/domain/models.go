package domain

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ThreatLevel is the categorical verdict for a page
type ThreatLevel string

const (
	LevelSafe              ThreatLevel = "SAFE"
	LevelSuspicious        ThreatLevel = "SUSPICIOUS"
	LevelLikelyPhishing    ThreatLevel = "LIKELY_PHISHING"
	LevelConfirmedPhishing ThreatLevel = "CONFIRMED_PHISHING"
)

// RiskLevel is the coarse risk category reported by the URL analyzer
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// MLClass is the classification string emitted by the ML page classifier.
//
// Deliberately a plain string type rather than a closed enum: the classifier
// is an external model that may ship new labels before this code does, and
// an unrecognized label must degrade gracefully in scoring, never fail
// decoding.
type MLClass string

const (
	MLSafe              MLClass = "SAFE"
	MLSuspicious        MLClass = "SUSPICIOUS"
	MLLikelyPhishing    MLClass = "LIKELY_PHISHING"
	MLConfirmedPhishing MLClass = "CONFIRMED_PHISHING"
)

// URLAnalysis is the output contract of the URL-reputation analyzer
type URLAnalysis struct {
	Score     float64   `json:"score"` // 0 to 100
	RiskLevel RiskLevel `json:"riskLevel"`
	Signals   []string  `json:"signals"` // ordered signal tags, e.g. "homoglyph"
}

// SignatureMatch is the output contract of the block/allow-list matcher
//
// Blocklisted and Allowlisted are never both true for well-behaved callers;
// if a caller breaks that rule the scorer resolves in the allowlist's favor.
type SignatureMatch struct {
	Matched         bool     `json:"matched"`
	Blocklisted     bool     `json:"blocklisted"`
	Allowlisted     bool     `json:"allowlisted"`
	ContentPatterns []string `json:"contentPatterns"`
	URLPatterns     []string `json:"urlPatterns"`
}

// MLInference is the output contract of the ML page classifier
type MLInference struct {
	Classification MLClass `json:"classification"`
	Confidence     float64 `json:"confidence"` // 0.0 to 1.0
	Reasoning      string  `json:"reasoning"`  // human-readable explanation
}

// DOMHeuristics is the output contract of the DOM heuristic extractor
type DOMHeuristics struct {
	HasPasswordForm     bool `json:"hasPasswordForm"`
	HasCreditCardForm   bool `json:"hasCreditCardForm"`
	LinkMismatchCount   int  `json:"linkMismatchCount"`
	BrandDomainMismatch bool `json:"brandDomainMismatch"`
	UrgencySignals      int  `json:"urgencySignals"`
}

// ThreatSignals bundles one measurement from each of the four signal
// producers. One immutable value per assessment request; how the signals
// are computed is the producers' business, only their shape is ours.
type ThreatSignals struct {
	URLAnalysis    URLAnalysis    `json:"urlAnalysis"`
	SignatureMatch SignatureMatch `json:"signatureMatch"`
	MLInference    MLInference    `json:"mlInference"`
	DOMHeuristics  DOMHeuristics  `json:"domHeuristics"`
}

// ThreatAssessment is the scorer's verdict for one set of signals
type ThreatAssessment struct {
	Score            int         `json:"score"` // 0 to 100
	Level            ThreatLevel `json:"level"`
	Confidence       float64     `json:"confidence"` // 0.0 to 1.0
	TriggeredSignals []string    `json:"triggeredSignals"`
	Reasoning        string      `json:"reasoning"`
}

// LevelFromScore converts a fused threat score to a categorical level
func LevelFromScore(score int) ThreatLevel {
	switch {
	case score >= 75:
		return LevelConfirmedPhishing
	case score >= 55:
		return LevelLikelyPhishing
	case score >= 25:
		return LevelSuspicious
	default:
		return LevelSafe
	}
}

// ThreatAlert is the unit queued for delivery to the remote console:
// a verdict plus the page context needed to act on it.
//
// Field names follow the collector's wire contract. Timestamp is epoch
// milliseconds, matching what the console expects.
type ThreatAlert struct {
	ID               uuid.UUID   `json:"id"`
	URL              string      `json:"url"`
	Domain           string      `json:"domain"`
	ThreatLevel      ThreatLevel `json:"threatLevel"`
	Score            int         `json:"score"`
	Confidence       float64     `json:"confidence"`
	TriggeredSignals []string    `json:"triggeredSignals"`
	Reasoning        string      `json:"reasoning"`
	Timestamp        int64       `json:"timestamp"`
	PageTitle        string      `json:"pageTitle"`
}

// NewThreatAlert builds an alert record from an assessment plus page context
func NewThreatAlert(assessment ThreatAssessment, pageURL, pageTitle string) ThreatAlert {
	return ThreatAlert{
		ID:               uuid.New(),
		URL:              pageURL,
		Domain:           hostOf(pageURL),
		ThreatLevel:      assessment.Level,
		Score:            assessment.Score,
		Confidence:       assessment.Confidence,
		TriggeredSignals: assessment.TriggeredSignals,
		Reasoning:        assessment.Reasoning,
		Timestamp:        time.Now().UnixMilli(),
		PageTitle:        pageTitle,
	}
}

// hostOf extracts the lowercase host from a page URL, empty if unparseable
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
