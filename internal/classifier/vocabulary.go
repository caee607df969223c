package classifier

import "strings"

// Vocabulary is the static keyword configuration of a deployment.
// All entries are lowercase; matching is case-insensitive substring containment.
type Vocabulary struct {
	Include        []string
	Exclude        []string
	ExcludeSenders []string
}

// NewVocabulary lowercases and deduplicates the given lists
func NewVocabulary(include, exclude, excludeSenders []string) *Vocabulary {
	return &Vocabulary{
		Include:        normalize(include),
		Exclude:        normalize(exclude),
		ExcludeSenders: normalize(excludeSenders),
	}
}

func normalize(terms []string) []string {
	lowered := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			lowered = append(lowered, t)
		}
	}
	return dedup(lowered)
}

// DefaultVocabulary returns the stock maintenance vocabulary
func DefaultVocabulary() *Vocabulary {
	return NewVocabulary(DefaultInclude, DefaultExclude, DefaultExcludeSenders)
}

// DefaultInclude lists maintenance and repair vocabulary.
var DefaultInclude = []string{
	// repair & maintenance
	"invoice", "repair", "mechanic", "service", "maintenance",
	"preventive maintenance", "pm service",
	// towing
	"tow", "towing", "roadside", "breakdown", "recovery",
	// oil & fluids
	"oil change", "lube", "lubricant", "fluid", "coolant", "antifreeze",
	"def", "diesel exhaust fluid",
	// parts
	"parts", "brake", "tire", "battery", "filter", "belt", "hose",
	"alternator", "starter", "transmission", "engine", "exhaust", "dpf",
	"egr", "turbo", "suspension", "steering", "axle", "wheel", "bearing",
	// labor
	"labor", "labour", "diagnostic", "inspection", "dot inspection",
	"annual inspection",
	// shops
	"truck shop", "truck repair", "diesel repair", "freightliner",
	"peterbilt", "kenworth", "volvo", "international", "mack", "ta petro",
	"loves", "pilot", "speedco", "rush truck",
}

// DefaultExclude lists vocabulary of unrelated document categories.
var DefaultExclude = []string{
	// rate confirmations & load documents
	"rate confirmation", "rate con", "ratecon", "rate sheet",
	"load confirmation", "load tender", "dispatch", "broker", "freight",
	"shipment", "pickup", "delivery", "bol", "bill of lading", "pod",
	"proof of delivery", "lumper", "detention", "accessorial",
	// insurance & registration
	"insurance policy", "certificate of insurance", "ifta", "2290",
	"registration renewal",
	// fuel
	"fuel discount report", "rxo fuel discount", "fuel receipt", "comdata",
	"efs", "tcheck", "pilot flying j", "pricing - pilot",
	// settlement & pay
	"settlement", "pay stub", "payroll", "direct deposit", "1099", "w2",
	// payment notices
	"zelle", "payment has been sent",
}

// DefaultExcludeSenders lists load-board and telematics notification senders.
var DefaultExcludeSenders = []string{
	"no-reply@dat.com",
	"no-reply@truckstop.com",
	"notifications@keeptruckin.com",
	"notifications@motive.com",
	"noreply@uber.com",
}
