package mail

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGmailQuery(t *testing.T) {
	q := Query{
		Terms: []string{"3AKJHHDR7KSKE1598", "KSKE1598", "574", "Unit 574"},
		After: time.Date(2025, 10, 15, 9, 30, 0, 0, time.UTC),
	}

	assert.Equal(t, `("3AKJHHDR7KSKE1598" OR "KSKE1598" OR "574" OR "Unit 574") after:2025/10/15`, q.GmailQuery())
}

func TestGmailQueryPartial(t *testing.T) {
	assert.Equal(t, `("574")`, Query{Terms: []string{"574"}}.GmailQuery())
	assert.Equal(t, "after:2024/01/02", Query{After: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}.GmailQuery())
	assert.Empty(t, Query{}.GmailQuery())
}
