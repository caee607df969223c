package model

// Reason is the machine-readable outcome of a classification
type Reason string

const (
	ReasonExcludedSender   Reason = "excluded_sender"
	ReasonRateConfirmation Reason = "rate_confirmation"
	ReasonExclusionSignals Reason = "exclusion_signals"
	ReasonNoIdentifier     Reason = "no_identifier"
	ReasonNotRelevant      Reason = "not_relevant"
	ReasonLowConfidence    Reason = "low_confidence"
	ReasonAccepted         Reason = "accepted"
)

// Rejection buckets used for operator reporting
const (
	BucketExcluded     = "excluded"
	BucketNoIdentifier = "no_identifier"
	BucketNotRelevant  = "not_relevant"
)

// Bucket maps a rejection reason onto one of the three reporting buckets.
// Accepted decisions have no bucket.
func (r Reason) Bucket() string {
	switch r {
	case ReasonAccepted:
		return ""
	case ReasonExcludedSender, ReasonRateConfirmation, ReasonExclusionSignals:
		return BucketExcluded
	case ReasonNoIdentifier:
		return BucketNoIdentifier
	default:
		return BucketNotRelevant
	}
}

// Decision is the immutable result of classifying one message
type Decision struct {
	Accepted    bool     `json:"accepted"`
	Confidence  float64  `json:"confidence"`
	Reason      Reason   `json:"reason"`
	Rationale   string   `json:"rationale"`
	Identifiers []string `json:"identifiers"`
	Keywords    []string `json:"keywords"`
}
