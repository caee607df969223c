package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-scanner-go/internal/model"
)

const (
	testUnit = "574"
	testVIN  = "3AKJHHDR7KSKE1598"
)

func newTestClassifier() *Classifier {
	return New(NewIdentity(testUnit, testVIN), DefaultVocabulary(), DefaultThreshold)
}

func TestIdentityVariants(t *testing.T) {
	id := NewIdentity(testUnit, testVIN)

	assert.Equal(t, "KSKE1598", id.Last8)
	assert.Equal(t, "KE1598", id.Last6)
	assert.Equal(t, "1598", id.Last4)
	assert.Equal(t, []string{
		testVIN, "KSKE1598", "KE1598", "1598", "574",
		"Unit 574", "Unit#574", "Unit-574", "Truck 574", "Truck#574", "Unit: 574",
	}, id.Variants())
	assert.Equal(t, []string{testVIN, "KSKE1598", "574", "Unit 574"}, id.SearchTerms())
}

func TestIdentityLabeledReturnsCopy(t *testing.T) {
	id := NewIdentity(testUnit, testVIN)

	labeled := id.Labeled()
	require.Contains(t, labeled, "Unit 574")
	require.Contains(t, labeled, "Truck#574")
	labeled[0] = "mutated"

	assert.Equal(t, "Unit 574", id.Labeled()[0])
	c := newTestClassifier()
	assert.Equal(t, pointsLabeledUnit-pointsBareUnit,
		c.score("unit 574 brake", "", nil, 0)-c.score("574 brake", "", nil, 0))
}

func TestIdentityShortVIN(t *testing.T) {
	id := NewIdentity("12", "ABC123")

	assert.Equal(t, "ABC123", id.Last8)
	assert.Equal(t, "ABC123", id.Last6)
	assert.Equal(t, "C123", id.Last4)
	assert.NotContains(t, id.Variants()[1:], "ABC123")
}

func TestScenarioInvoiceWithFullVIN(t *testing.T) {
	c := newTestClassifier()

	d := c.Classify(
		"Invoice — PM Service Unit 574",
		"Work order for VIN 3AKJHHDR7KSKE1598, replaced brake pads.",
		"shop@example.com",
		[]string{"invoice_8812.pdf"},
	)

	assert.True(t, d.Accepted)
	assert.Equal(t, model.ReasonAccepted, d.Reason)
	assert.GreaterOrEqual(t, d.Confidence, 0.85)
	assert.LessOrEqual(t, d.Confidence, 1.0)
	assert.Contains(t, d.Identifiers, testVIN)
	assert.Contains(t, d.Identifiers, "Unit 574")
	assert.Contains(t, d.Keywords, "invoice")
}

func TestScenarioRateConfirmationVeto(t *testing.T) {
	c := newTestClassifier()

	d := c.Classify(
		"Rate Confirmation #4471",
		"Unit 574 pickup scheduled. Invoice for repair, brake, tire, engine service.",
		"broker@example.com",
		nil,
	)

	assert.False(t, d.Accepted)
	assert.Equal(t, model.ReasonRateConfirmation, d.Reason)
	assert.Equal(t, "rate confirmation detected", d.Rationale)
}

func TestScenarioNoIdentifier(t *testing.T) {
	c := newTestClassifier()

	d := c.Classify("Weekly Newsletter", "Spring savings on everything in the store.", "news@example.com", nil)

	assert.False(t, d.Accepted)
	assert.Equal(t, model.ReasonNoIdentifier, d.Reason)
	assert.Equal(t, "no identifier found", d.Rationale)
	assert.Empty(t, d.Identifiers)
}

func TestScenarioSuffixAtBoundary(t *testing.T) {
	c := newTestClassifier()

	d := c.Classify("Brake repair", "Truck with VIN ending 1598 is ready.", "shop@example.com", nil)

	require.True(t, d.Accepted, d.Rationale)
	assert.Equal(t, []string{"1598"}, d.Identifiers)
	assert.ElementsMatch(t, []string{"repair", "brake"}, d.Keywords)
	assert.InDelta(t, 0.35, d.Confidence, 1e-9)
}

func TestExcludedSenderAlwaysWins(t *testing.T) {
	c := newTestClassifier()

	d := c.Classify(
		"Invoice — PM Service Unit 574",
		"VIN 3AKJHHDR7KSKE1598 repair brake engine",
		"DAT Alerts <No-Reply@DAT.com>",
		[]string{"invoice.pdf"},
	)

	assert.False(t, d.Accepted)
	assert.Equal(t, model.ReasonExcludedSender, d.Reason)
	assert.Equal(t, model.BucketExcluded, d.Reason.Bucket())
}

func TestSoftExclusion(t *testing.T) {
	c := newTestClassifier()

	t.Run("more exclusion than inclusion rejects", func(t *testing.T) {
		d := c.Classify("Settlement for Unit 574", "Payroll and direct deposit details, repair deduction", "pay@example.com", nil)
		assert.False(t, d.Accepted)
		assert.Equal(t, model.ReasonExclusionSignals, d.Reason)
		assert.Contains(t, d.Rationale, "(3)")
	})

	t.Run("inclusion outweighs exclusion", func(t *testing.T) {
		d := c.Classify("Invoice Unit 574", "Brake repair, tire service, shop delivery", "shop@example.com", nil)
		assert.True(t, d.Accepted, d.Rationale)
	})
}

func TestIdentifierWithoutKeywords(t *testing.T) {
	c := newTestClassifier()

	d := c.Classify("Unit 574", "See you tomorrow", "friend@example.com", nil)

	assert.False(t, d.Accepted)
	assert.Equal(t, model.ReasonNotRelevant, d.Reason)
	assert.Contains(t, d.Identifiers, "Unit 574")
	assert.Equal(t, model.BucketNotRelevant, d.Reason.Bucket())
}

func TestLowConfidence(t *testing.T) {
	c := newTestClassifier()

	// bare unit (10) + one keyword (10)
	d := c.Classify("Parts 574", "", "counter@example.com", nil)

	assert.False(t, d.Accepted)
	assert.Equal(t, model.ReasonLowConfidence, d.Reason)
	assert.InDelta(t, 0.20, d.Confidence, 1e-9)
	assert.Equal(t, model.BucketNotRelevant, d.Reason.Bucket())
}

func TestConfigurableThreshold(t *testing.T) {
	strict := New(NewIdentity(testUnit, testVIN), DefaultVocabulary(), 0.5)

	d := strict.Classify("Brake repair", "VIN ending 1598", "shop@example.com", nil)

	assert.False(t, d.Accepted)
	assert.Equal(t, model.ReasonLowConfidence, d.Reason)
	assert.Equal(t, 0.5, strict.Threshold())
	assert.Equal(t, DefaultThreshold, New(NewIdentity(testUnit, testVIN), DefaultVocabulary(), 0).Threshold())
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := newTestClassifier()
	s := &model.Surface{
		Subject:     "Invoice Truck#574 coolant flush",
		Body:        "VIN KSKE1598 oil change and filter",
		Sender:      "shop@example.com",
		Attachments: []model.Attachment{{Filename: "wo.PDF"}},
	}

	assert.Equal(t, c.ClassifySurface(s), c.ClassifySurface(s))
}

func TestConfidenceMonotonic(t *testing.T) {
	c := newTestClassifier()
	score := func(subject, body string, names []string) float64 {
		return c.Classify(subject, body, "shop@example.com", names).Confidence
	}

	t.Run("longer identifier never scores lower", func(t *testing.T) {
		last4 := score("work", "repair 1598", nil)
		last6 := score("work", "repair KE1598", nil)
		last8 := score("work", "repair KSKE1598", nil)
		full := score("work", "repair "+testVIN, nil)
		assert.LessOrEqual(t, last4, last6)
		assert.LessOrEqual(t, last6, last8)
		assert.LessOrEqual(t, last8, full)
	})

	t.Run("more keywords never score lower until the cap", func(t *testing.T) {
		words := []string{"brake", "tire", "hose", "axle", "bearing", "turbo"}
		prev := 0.0
		for i := 1; i <= len(words); i++ {
			body := "Unit 574"
			for _, w := range words[:i] {
				body += " " + w
			}
			got := score("x", body, nil)
			assert.GreaterOrEqual(t, got, prev)
			prev = got
		}
		assert.InDelta(t, 0.60, prev, 1e-9)
	})

	t.Run("pdf and invoice subject add confidence", func(t *testing.T) {
		body := "Unit 574 brake invoice"
		base := score("work order", body, nil)
		withPDF := score("work order", body, []string{"scan.pdf"})
		withInvoice := score("invoice work order", body, []string{"scan.pdf"})
		assert.InDelta(t, base+0.10, withPDF, 1e-9)
		assert.InDelta(t, withPDF+0.15, withInvoice, 1e-9)
	})
}

func TestConfidenceClamped(t *testing.T) {
	c := newTestClassifier()

	d := c.Classify(
		"Invoice Unit 574",
		testVIN+" repair brake tire engine turbo service maintenance",
		"shop@example.com",
		[]string{"a.pdf"},
	)

	assert.Equal(t, 1.0, d.Confidence)
}

func TestVocabularyNormalized(t *testing.T) {
	v := NewVocabulary([]string{" Brake ", "brake", ""}, []string{"BOL"}, []string{"X@Y.com"})

	assert.Equal(t, []string{"brake"}, v.Include)
	assert.Equal(t, []string{"bol"}, v.Exclude)
	assert.Equal(t, []string{"x@y.com"}, v.ExcludeSenders)
}
