package evidence

import (
	"strings"

	"audit-backend/internal/transcribe"
)

// verbalKeywords selects utterances worth showing to the scorer: greetings,
// verification, pricing, commitments, closure language, and their Spanish
// equivalents.
var verbalKeywords = []string{
	"hello", "good morning", "good afternoon", "thank",
	"verify", "confirm", "identity", "account",
	"price", "cost", "charge", "payment", "pay",
	"offer", "plan", "contract", "cancel",
	"problem", "issue", "error", "resolve", "solution",
	"ticket", "case", "next step", "follow up",
	"goodbye", "anything else",
	"hola", "buenos", "buenas", "gracias",
	"verificar", "confirmar", "identidad", "cuenta",
	"precio", "costo", "cargo", "pago", "pagar",
	"oferta", "contrato", "cancelar",
	"problema", "resolver", "solucion",
	"caso", "seguimiento", "adios", "algo mas",
}

// verbalMinLength drops fragments too short to carry meaning on their own.
const verbalMinLength = 12

// ExtractVerbal filters the transcript down to keyword-relevant lines. It is
// pure and order-preserving: an utterance is retained iff its lowercased text
// contains any keyword and exceeds the minimum length.
func ExtractVerbal(utterances []transcribe.Utterance) []VerbalLine {
	var out []VerbalLine
	for _, u := range utterances {
		text := strings.TrimSpace(u.Text)
		if len(text) <= verbalMinLength {
			continue
		}
		lowered := strings.ToLower(text)
		for _, kw := range verbalKeywords {
			if strings.Contains(lowered, kw) {
				out = append(out, VerbalLine{
					TimestampMs: u.StartMs,
					Speaker:     u.Speaker,
					Text:        text,
				})
				break
			}
		}
	}
	return out
}
