package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"audit-backend/internal/catalog"
	"audit-backend/internal/scoring"
)

const sheetName = "Audit"

// Render serializes an evaluation into spreadsheet bytes. The layout variant
// comes from the catalog; everything else is a pure function of the inputs,
// so the same (catalog, result, generatedAt) triple always produces the same
// bytes.
func Render(cat catalog.Catalog, auditCtx scoring.Context, result scoring.EvaluationResult, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	// Pin document properties so repeated renders stay byte-identical.
	stamp := generatedAt.UTC().Format(time.RFC3339)
	if err := f.SetDocProps(&excelize.DocProperties{
		Creator:        "audit-backend",
		LastModifiedBy: "audit-backend",
		Created:        stamp,
		Modified:       stamp,
	}); err != nil {
		return nil, fmt.Errorf("doc props: %w", err)
	}

	styles, err := newStyleSet(f)
	if err != nil {
		return nil, err
	}

	switch cat.Layout {
	case catalog.LayoutHorizontal:
		err = renderHorizontal(f, styles, cat, auditCtx, result, generatedAt)
	default:
		err = renderVertical(f, styles, cat, auditCtx, result, generatedAt)
	}
	if err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// blockRun is a consecutive run of topics sharing a block, in catalog order.
type blockRun struct {
	Name   string
	Topics []scoring.ScoredTopic
}

func groupByBlock(topics []scoring.ScoredTopic) []blockRun {
	var runs []blockRun
	for _, t := range topics {
		if len(runs) == 0 || runs[len(runs)-1].Name != t.BlockName {
			runs = append(runs, blockRun{Name: t.BlockName})
		}
		runs[len(runs)-1].Topics = append(runs[len(runs)-1].Topics, t)
	}
	return runs
}

// scoreCellText renders the score column token for one topic.
func scoreCellText(t scoring.ScoredTopic) any {
	switch {
	case t.NotApplicable:
		return "N/A"
	case !t.Evaluated:
		return "not evaluated"
	case t.Critical && t.Score >= t.MaxScore:
		return "CRITICAL: PASS"
	case t.Critical:
		return "CRITICAL: FAIL"
	default:
		return t.Score
	}
}

// weightCellText renders the weight row/column value verbatim.
func weightCellText(t scoring.ScoredTopic) any {
	if t.NotApplicable {
		return "N/A"
	}
	return t.MaxScore
}

// observationsText builds the free-text observations body: narrative,
// recommendations, then key moments with mm:ss timestamps.
func observationsText(result scoring.EvaluationResult) string {
	var b strings.Builder
	b.WriteString(result.Narrative)
	if len(result.Recommendations) > 0 {
		b.WriteString("\n\nRecommendations:")
		for _, rec := range result.Recommendations {
			b.WriteString("\n- " + rec)
		}
	}
	if len(result.KeyMoments) > 0 {
		b.WriteString("\n\nKey moments:")
		for _, km := range result.KeyMoments {
			secs := km.TimestampMs / 1000
			fmt.Fprintf(&b, "\n[%02d:%02d] %s: %s", secs/60, secs%60, km.Kind, km.Description)
		}
	}
	return b.String()
}

func addJustification(f *excelize.File, cell string, t scoring.ScoredTopic) error {
	text := t.Justification
	if text == "" && t.Note != "" {
		text = t.Note
	}
	if text == "" {
		return nil
	}
	return f.AddComment(sheetName, excelize.Comment{
		Cell:   cell,
		Author: "audit-backend",
		Paragraph: []excelize.RichTextRun{
			{Text: text},
		},
	})
}
