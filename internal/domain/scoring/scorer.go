package scoring

import (
	"math"

	"github.com/phishguard/threatpipeline/internal/domain"
)

// Weights controls how much each signal source contributes to the fused
// score. Weights are applied verbatim: they are NOT renormalized, so a
// caller supplying weights that do not sum to 1.0 gets exactly the
// arithmetic it asked for.
//
// Production: these defaults were tuned against a labeled phishing corpus;
// per-deployment overrides let an operator bias toward whichever signal
// source performs best for their traffic.
type Weights struct {
	URL       float64
	Signature float64
	ML        float64
	DOM       float64
}

// DefaultWeights returns the standard signal weighting
func DefaultWeights() Weights {
	return Weights{
		URL:       0.30,
		Signature: 0.25,
		ML:        0.35,
		DOM:       0.10,
	}
}

// Scorer fuses the four heterogeneous signal sources into a single
// threat verdict with an explanation.
//
// The scorer is a pure function over its inputs: no I/O, no mutation,
// no hidden state. A single instance may be shared freely across
// goroutines.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer. A nil weights argument selects the
// documented defaults; a non-nil one is used as given.
func NewScorer(weights *Weights) *Scorer {
	if weights == nil {
		return &Scorer{weights: DefaultWeights()}
	}
	return &Scorer{weights: *weights}
}

// Assess turns one set of signals into a threat verdict.
//
// List membership is checked before any weighted math: an allowlisted
// domain is safe no matter what the other signals say (and wins over a
// simultaneous blocklist hit), and a blocklisted domain is confirmed
// phishing outright. Only when neither fast path applies do the four
// component scores get fused.
func (s *Scorer) Assess(signals domain.ThreatSignals) domain.ThreatAssessment {
	if signals.SignatureMatch.Allowlisted {
		return domain.ThreatAssessment{
			Score:            0,
			Level:            domain.LevelSafe,
			Confidence:       1.0,
			TriggeredSignals: []string{},
			Reasoning:        "Domain is allowlisted",
		}
	}

	if signals.SignatureMatch.Blocklisted {
		return domain.ThreatAssessment{
			Score:            100,
			Level:            domain.LevelConfirmedPhishing,
			Confidence:       1.0,
			TriggeredSignals: []string{"blocklisted_domain"},
			Reasoning:        "Domain is in the phishing blocklist",
		}
	}

	raw := urlScore(signals.URLAnalysis)*s.weights.URL +
		signatureScore(signals.SignatureMatch)*s.weights.Signature +
		mlScore(signals.MLInference)*s.weights.ML +
		domScore(signals.DOMHeuristics)*s.weights.DOM

	score := roundHalfUp(clamp(raw, 0, 100))

	return domain.ThreatAssessment{
		Score:            score,
		Level:            domain.LevelFromScore(score),
		Confidence:       estimateConfidence(score, signals.MLInference.Confidence),
		TriggeredSignals: triggeredSignals(signals),
		Reasoning:        signals.MLInference.Reasoning,
	}
}

// urlScore passes the analyzer's 0-100 score through, clamped
func urlScore(u domain.URLAnalysis) float64 {
	return clamp(u.Score, 0, 100)
}

// signatureScore converts pattern-match counts to a 0-100 score.
// Content patterns (credential forms, seed phrases, etc.) are worth more
// than URL patterns because they are harder for an attacker to accumulate
// accidentally.
func signatureScore(m domain.SignatureMatch) float64 {
	raw := 20*float64(len(m.ContentPatterns)) + 15*float64(len(m.URLPatterns))
	return clamp(raw, 0, 100)
}

// mlScore scales a per-classification base score by the model's own
// confidence. An unrecognized classification lands on a neutral base of
// 50 rather than failing: the model shipping a new label must degrade,
// not break, older clients.
func mlScore(ml domain.MLInference) float64 {
	var base float64
	switch ml.Classification {
	case domain.MLSafe:
		base = 0
	case domain.MLSuspicious:
		base = 40
	case domain.MLLikelyPhishing:
		base = 70
	case domain.MLConfirmedPhishing:
		base = 100
	default:
		base = 50
	}
	return base * ml.Confidence
}

// domScore converts DOM heuristic flags and counts to a 0-100 score
func domScore(d domain.DOMHeuristics) float64 {
	raw := 0.0
	if d.HasPasswordForm {
		raw += 20
	}
	if d.HasCreditCardForm {
		raw += 30
	}
	if d.BrandDomainMismatch {
		raw += 25
	}
	raw += 10 * float64(d.LinkMismatchCount)
	raw += 10 * float64(d.UrgencySignals)
	return clamp(raw, 0, 100)
}

// estimateConfidence derives verdict confidence from the fused score and
// the ML model's self-reported confidence.
//
// Extreme scores mean multiple independent sources corroborated each
// other, so confidence is high regardless of what the model claimed.
// Mid-range scores are inherently ambiguous: the model's confidence is
// discounted and floored at coin-flip-plus.
func estimateConfidence(score int, mlConfidence float64) float64 {
	if score >= 80 || score <= 10 {
		return math.Max(mlConfidence, 0.85)
	}
	return math.Max(mlConfidence*0.8, 0.5)
}

// triggeredSignals assembles the ordered explanation tags for a weighted
// verdict: URL analyzer tags, then signature content and URL pattern
// tags, then the DOM flags that actually fired. Clean input yields an
// empty (non-nil) slice.
func triggeredSignals(signals domain.ThreatSignals) []string {
	tags := make([]string, 0)

	for _, sig := range signals.URLAnalysis.Signals {
		tags = append(tags, "url:"+sig)
	}
	for _, p := range signals.SignatureMatch.ContentPatterns {
		tags = append(tags, "content:"+p)
	}
	for _, p := range signals.SignatureMatch.URLPatterns {
		tags = append(tags, "urlpattern:"+p)
	}

	d := signals.DOMHeuristics
	if d.HasPasswordForm {
		tags = append(tags, "dom:password_form")
	}
	if d.HasCreditCardForm {
		tags = append(tags, "dom:credit_card_form")
	}
	if d.BrandDomainMismatch {
		tags = append(tags, "dom:brand_mismatch")
	}
	if d.LinkMismatchCount > 0 {
		tags = append(tags, "dom:link_mismatch")
	}

	return tags
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// roundHalfUp rounds to the nearest integer, ties upward
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
