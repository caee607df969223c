package model

// Attachment describes one file attached to a message
type Attachment struct {
	Filename  string `json:"filename"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
	// Handle is the provider's opaque reference used to fetch the bytes.
	Handle string `json:"handle,omitempty"`
	// Data is set when the provider already delivered the bytes inline.
	Data []byte `json:"-"`
}

// Surface is the flattened, provider-independent view of a message that the
// classifier and archiver work on.
type Surface struct {
	ID          string       `json:"id"`
	Subject     string       `json:"subject"`
	Sender      string       `json:"sender"`
	Date        string       `json:"date"`
	Body        string       `json:"body"`
	Attachments []Attachment `json:"attachments"`
}

// AttachmentNames returns the filenames of all attachments in order
func (s *Surface) AttachmentNames() []string {
	names := make([]string, 0, len(s.Attachments))
	for _, a := range s.Attachments {
		names = append(names, a.Filename)
	}
	return names
}
