package models

// UnknownSpeaker is used when a transcript record carries no speaker or type.
const UnknownSpeaker = "Unknown"

// TranscriptEntry is one utterance or segment of a transcript.
type TranscriptEntry struct {
	Speaker string `json:"speaker"`
	Content string `json:"content"`
	Episode string `json:"episode,omitempty"`
	// Narration marks an unattributed content record; it renders without a speaker label.
	Narration bool `json:"narration,omitempty"`
	// Source is the file the entry was read from.
	Source string `json:"-"`
}

// Line renders the entry the way it appears in the context blob.
func (e TranscriptEntry) Line() string {
	if e.Narration {
		return e.Content
	}
	return e.Speaker + ": " + e.Content
}
