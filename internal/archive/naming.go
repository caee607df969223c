package archive

import (
	"encoding/hex"
	"fmt"
	"net/mail"
	"path"
	"regexp"
	"strings"
	"time"

	"lukechampine.com/blake3"
)

// maxSubjectRunes caps the subject fragment of archived filenames
const maxSubjectRunes = 50

// fingerprintLen is the number of hex characters kept from the content hash
const fingerprintLen = 8

var (
	nonWordRe    = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// lenient layouts tried after RFC 5322 parsing fails
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
	"2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05",
	time.RFC3339,
}

// Fingerprint returns a short, stable hash of the attachment bytes
func Fingerprint(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

// SanitizeSubject strips everything but letters, digits, underscores,
// whitespace and dashes and caps the result at 50 characters.
func SanitizeSubject(subject string) string {
	cleaned := []rune(nonWordRe.ReplaceAllString(subject, ""))
	if len(cleaned) > maxSubjectRunes {
		cleaned = cleaned[:maxSubjectRunes]
	}
	return string(cleaned)
}

// safeBaseName reduces an attachment name to a plain file name that cannot
// leave the month folder.
func safeBaseName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "attachment"
	}
	return name
}

// BuildFilename returns <YYYYMMDD>_<subject>_<fingerprint>_<name> with
// whitespace runs collapsed to a single underscore.
func BuildFilename(date time.Time, subject, fingerprint, original string) string {
	name := fmt.Sprintf("%s_%s_%s_%s",
		date.Format("20060102"),
		SanitizeSubject(subject),
		fingerprint,
		safeBaseName(original),
	)
	return whitespaceRe.ReplaceAllString(name, "_")
}

// ParseMessageDate parses a Date header. ok is false when no known format
// matched.
func ParseMessageDate(header string) (time.Time, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return time.Time{}, false
	}
	if t, err := mail.ParseDate(header); err == nil {
		return t, true
	}
	// drop a leading weekday such as "Tue, "
	trimmed := header
	if i := strings.Index(trimmed, ","); i >= 0 && i <= 4 {
		trimmed = strings.TrimSpace(trimmed[i+1:])
	}
	for _, layout := range dateLayouts {
		for _, candidate := range []string{header, trimmed} {
			if t, err := time.Parse(layout, candidate); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
