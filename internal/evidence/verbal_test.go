package evidence

import (
	"encoding/json"
	"strings"
	"testing"

	"audit-backend/internal/transcribe"
)

func TestExtractVerbalKeepsKeywordLines(t *testing.T) {
	utterances := []transcribe.Utterance{
		{Speaker: "A", Text: "Good morning, thank you for calling", StartMs: 0},
		{Speaker: "B", Text: "mmm ok", StartMs: 1500},
		{Speaker: "A", Text: "Can I verify your account number please?", StartMs: 3000},
		{Speaker: "B", Text: "the weather is lovely today outside", StartMs: 5000},
	}

	got := ExtractVerbal(utterances)
	if len(got) != 2 {
		t.Fatalf("expected 2 lines, got %d: %+v", len(got), got)
	}
	if got[0].TimestampMs != 0 || got[1].TimestampMs != 3000 {
		t.Fatalf("order not preserved: %+v", got)
	}
}

func TestExtractVerbalMinLength(t *testing.T) {
	// Contains a keyword but is too short to be useful.
	got := ExtractVerbal([]transcribe.Utterance{{Text: "pago", StartMs: 10}})
	if len(got) != 0 {
		t.Fatalf("expected short line dropped, got %+v", got)
	}
}

func TestExtractVerbalIsDeterministic(t *testing.T) {
	utterances := []transcribe.Utterance{
		{Speaker: "A", Text: "El precio total es de 30 euros al mes", StartMs: 100},
		{Speaker: "B", Text: "De acuerdo, gracias por la informacion", StartMs: 200},
	}
	first := ExtractVerbal(utterances)
	second := ExtractVerbal(utterances)
	if len(first) != len(second) {
		t.Fatalf("non-deterministic output: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("non-deterministic line %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestSanitizeJSONStripsFencesAndRepairs(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"plain", `{"system":"crm","data":{}}`},
		{"fenced", "```json\n{\"system\":\"crm\",\"data\":{}}\n```"},
		{"bom", "\uFEFF{\"system\":\"crm\",\"data\":{}}"},
		{"trailing comma", `{"system":"crm","data":{},}`},
	}
	for _, tc := range cases {
		clean, err := SanitizeJSON(tc.raw)
		if err != nil {
			t.Fatalf("%s: sanitize: %v", tc.name, err)
		}
		if !json.Valid([]byte(clean)) {
			t.Fatalf("%s: output not valid JSON: %q", tc.name, clean)
		}
		if strings.HasPrefix(clean, "\uFEFF") {
			t.Fatalf("%s: byte order mark survived: %q", tc.name, clean)
		}
	}
}
