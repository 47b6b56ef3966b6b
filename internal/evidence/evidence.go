package evidence

// VisualRecord is the structured extraction from one screenshot.
type VisualRecord struct {
	SourceID      string          `json:"sourceId"`
	System        string          `json:"system"`
	Fields        map[string]any  `json:"fields"`
	CriticalFlags map[string]bool `json:"criticalFlags"`
	Findings      []string        `json:"findings"`
}

// VerbalLine is one keyword-relevant utterance from the transcript.
type VerbalLine struct {
	TimestampMs int64  `json:"timestampMs"`
	Speaker     string `json:"speaker"`
	Text        string `json:"text"`
}

// Image is one screenshot to analyze.
type Image struct {
	SourceID string
	Data     []byte
	MimeType string
}

// Bundle is the complete evidence set handed to the scorer.
type Bundle struct {
	Visual map[string][]VisualRecord
	Verbal []VerbalLine
}
