package speech

import "github.com/dastanaron/voicenotes/internal/models"

// Transcript folds recognition results into note content. Final results
// are committed; a partial result is only kept as a preview until the next
// result or Reset.
type Transcript struct {
	content string
	partial string
}

// NewTranscript starts from existing content
func NewTranscript(content string) *Transcript {
	return &Transcript{content: content}
}

// Apply folds one result in and reports whether content changed
func (t *Transcript) Apply(text string, isFinal bool) bool {
	if !isFinal {
		t.partial = text
		return false
	}
	t.partial = ""
	next := models.AppendSentence(t.content, text)
	if next == t.content {
		return false
	}
	t.content = next
	return true
}

// Content returns the committed text
func (t *Transcript) Content() string { return t.content }

// Partial returns the pending preview
func (t *Transcript) Partial() string { return t.partial }

// Preview returns the content followed by the pending partial
func (t *Transcript) Preview() string {
	return models.AppendSentence(t.content, t.partial)
}

// Reset drops the pending partial
func (t *Transcript) Reset() { t.partial = "" }
