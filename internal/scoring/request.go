package scoring

import (
	"fmt"
	"sort"
	"strings"

	"audit-backend/internal/catalog"
	"audit-backend/internal/evidence"
)

// verbalWindowLines bounds how many transcript lines reach the scorer. The
// scorer is called once per evaluation, so the request has to stay bounded.
const verbalWindowLines = 120

const scoringSystemPrompt = `You are a quality auditor for contact-center interactions. You evaluate evidence against a fixed rubric and respond with a single JSON object, nothing else. Score only the topics listed; never invent topics. Every score needs a short justification grounded in the evidence.`

// BuildRequest renders the catalog and evidence bundle into the scorer
// instruction. Only applicable topics are asked for; not-applicable topics
// never reach the scorer and are excluded from the denominator the same way.
func BuildRequest(sel catalog.Selection, bundle evidence.Bundle, auditCtx Context) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Interaction type: %s\n", auditCtx.InteractionType)
	if auditCtx.AgentName != "" {
		fmt.Fprintf(&b, "Agent: %s\n", auditCtx.AgentName)
	}
	fmt.Fprintf(&b, "Rubric: %s v%s\n\n", sel.Catalog.Name, sel.Catalog.Version)

	b.WriteString("## Topics to score\n")
	for _, bt := range sel.Catalog.ApplicableTopics() {
		// Pointless asks: a topic without points renders as N/A and is never
		// reconciled, so the scorer must not see it.
		if !bt.Topic.HasPoints {
			continue
		}
		line := fmt.Sprintf("- block=%q topic=%q max=%g", bt.Block, bt.Topic.Label, bt.Topic.MaxPoints)
		if bt.Topic.Critical {
			line += " critical=true"
		}
		b.WriteString(line + "\n")
		if bt.Topic.Guidance != "" {
			fmt.Fprintf(&b, "  guidance: %s\n", bt.Topic.Guidance)
		}
	}

	b.WriteString("\n## Screen evidence\n")
	writeVisualEvidence(&b, bundle.Visual)

	b.WriteString("\n## Call transcript (relevant lines)\n")
	lines := bundle.Verbal
	if len(lines) > verbalWindowLines {
		lines = lines[:verbalWindowLines]
	}
	if len(lines) == 0 {
		b.WriteString("(no relevant transcript lines)\n")
	}
	for _, line := range lines {
		fmt.Fprintf(&b, "[%s] %s: %s\n", formatTimestamp(line.TimestampMs), line.Speaker, line.Text)
	}

	b.WriteString(`
## Response format
{
  "topics": [{"block": "...", "topic": "...", "score": 0, "justification": "..."}],
  "narrative": "...",
  "recommendations": ["..."],
  "keyMoments": [{"timestampMs": 0, "kind": "opening|objection|commitment|closure|incident", "description": "..."}]
}
`)
	return b.String()
}

func writeVisualEvidence(b *strings.Builder, grouped map[string][]evidence.VisualRecord) {
	if len(grouped) == 0 {
		b.WriteString("(no screen evidence)\n")
		return
	}
	systems := make([]string, 0, len(grouped))
	for system := range grouped {
		systems = append(systems, system)
	}
	sort.Strings(systems)

	for _, system := range systems {
		fmt.Fprintf(b, "### System: %s\n", system)
		for _, record := range grouped[system] {
			fmt.Fprintf(b, "Screenshot %s:\n", record.SourceID)
			fields := make([]string, 0, len(record.Fields))
			for name := range record.Fields {
				fields = append(fields, name)
			}
			sort.Strings(fields)
			for _, name := range fields {
				marker := ""
				if record.CriticalFlags[name] {
					marker = " [CRITICAL]"
				}
				fmt.Fprintf(b, "  %s = %v%s\n", name, record.Fields[name], marker)
			}
			for _, finding := range record.Findings {
				fmt.Fprintf(b, "  finding: %s\n", finding)
			}
		}
	}
}

func formatTimestamp(ms int64) string {
	secs := ms / 1000
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
