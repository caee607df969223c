// Package classifier decides whether a message is a maintenance or repair
// invoice for the configured vehicle.
//
// Classification is a pure function of the message text, the sender, the
// attachment names, the vehicle identity and the vocabulary. All matching is
// case-insensitive substring containment, not word matching: "tow" matches
// "towing" and "def" matches "defect". This trades precision for recall and is
// kept deliberately, the confidence threshold bounds the false positives.
package classifier

import (
	"fmt"
	"strings"

	"invoice-scanner-go/internal/model"
)

// DefaultThreshold is the minimum confidence for accepting a message
const DefaultThreshold = 0.30

// Score weights, in hundredths of confidence.
const (
	pointsVIN          = 40
	pointsLast8        = 35
	pointsLast6        = 25
	pointsLast4        = 15
	pointsLabeledUnit  = 20
	pointsBareUnit     = 10
	pointsPerKeyword   = 10
	maxKeywordPoints   = 40
	pointsPDF          = 10
	pointsInvoiceTitle = 15
	maxPoints          = 100
)

// Classifier scores messages against one vehicle identity and vocabulary.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	identity  *Identity
	vocab     *Vocabulary
	threshold float64
	variants  []string
}

// New creates a classifier. A non-positive threshold selects DefaultThreshold.
func New(identity *Identity, vocab *Vocabulary, threshold float64) *Classifier {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Classifier{
		identity:  identity,
		vocab:     vocab,
		threshold: threshold,
		variants:  identity.Variants(),
	}
}

// Threshold returns the acceptance threshold in use
func (c *Classifier) Threshold() float64 {
	return c.threshold
}

// ClassifySurface classifies a flattened message
func (c *Classifier) ClassifySurface(s *model.Surface) model.Decision {
	return c.Classify(s.Subject, s.Body, s.Sender, s.AttachmentNames())
}

// Classify runs the ordered rule chain; the first terminal rule wins.
func (c *Classifier) Classify(subject, body, sender string, attachmentNames []string) model.Decision {
	d := model.Decision{
		Identifiers: []string{},
		Keywords:    []string{},
	}

	text := strings.ToLower(subject + " " + body + " " + strings.Join(attachmentNames, " "))
	from := strings.ToLower(sender)

	for _, s := range c.vocab.ExcludeSenders {
		if strings.Contains(from, s) {
			d.Reason = model.ReasonExcludedSender
			d.Rationale = "excluded sender: " + s
			return d
		}
	}

	excluded := matchAll(text, c.vocab.Exclude)
	if len(excluded) > 0 {
		for _, term := range excluded {
			if isRateConfirmation(term) {
				d.Reason = model.ReasonRateConfirmation
				d.Rationale = "rate confirmation detected"
				return d
			}
		}
		included := matchAll(text, c.vocab.Include)
		if len(excluded) > len(included) {
			d.Reason = model.ReasonExclusionSignals
			d.Rationale = fmt.Sprintf("more exclusion signals (%d) than inclusion signals (%d)",
				len(excluded), len(included))
			return d
		}
	}

	d.Identifiers = matchAll(text, c.variants)
	if len(d.Identifiers) == 0 {
		d.Reason = model.ReasonNoIdentifier
		d.Rationale = "no identifier found"
		return d
	}

	d.Keywords = matchAll(text, c.vocab.Include)
	if len(d.Keywords) == 0 {
		d.Reason = model.ReasonNotRelevant
		d.Rationale = fmt.Sprintf("identifier present (%s) but no relevant keywords",
			strings.Join(d.Identifiers, ", "))
		return d
	}

	points := c.score(text, subject, attachmentNames, len(d.Keywords))
	d.Confidence = float64(points) / 100

	if d.Confidence >= c.threshold {
		d.Accepted = true
		d.Reason = model.ReasonAccepted
		d.Rationale = fmt.Sprintf("maintenance invoice detected (confidence %d%%)", points)
		return d
	}

	d.Reason = model.ReasonLowConfidence
	d.Rationale = fmt.Sprintf("confidence below threshold (%d%% < %.0f%%)", points, c.threshold*100)
	return d
}

// score sums the additive signals. text is already lowercased.
func (c *Classifier) score(text, subject string, attachmentNames []string, keywords int) int {
	id := c.identity
	points := 0

	switch {
	case contains(text, id.VIN):
		points += pointsVIN
	case contains(text, id.Last8):
		points += pointsLast8
	case contains(text, id.Last6):
		points += pointsLast6
	case contains(text, id.Last4):
		points += pointsLast4
	}

	if len(matchAll(text, id.Labeled())) > 0 {
		points += pointsLabeledUnit
	} else if contains(text, id.Unit) {
		points += pointsBareUnit
	}

	points += min(keywords*pointsPerKeyword, maxKeywordPoints)

	for _, name := range attachmentNames {
		if strings.HasSuffix(strings.ToLower(strings.TrimSpace(name)), ".pdf") {
			points += pointsPDF
			break
		}
	}

	if strings.Contains(strings.ToLower(subject), "invoice") {
		points += pointsInvoiceTitle
	}

	return min(points, maxPoints)
}

// isRateConfirmation reports whether an exclusion term names a rate
// confirmation, which vetoes the message regardless of other signals.
func isRateConfirmation(term string) bool {
	return strings.Contains(term, "rate") && strings.Contains(term, "confirm")
}

// matchAll returns the terms contained in text, preserving term order.
func matchAll(text string, terms []string) []string {
	found := []string{}
	for _, t := range terms {
		if contains(text, t) {
			found = append(found, t)
		}
	}
	return found
}

func contains(lowerText, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(lowerText, strings.ToLower(term))
}
