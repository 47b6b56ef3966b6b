package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"audit-backend/internal/catalog"
	"audit-backend/internal/scoring"
)

var fixedTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func sampleCatalog(layout catalog.LayoutVariant) catalog.Catalog {
	return catalog.Catalog{
		Name:    "support",
		Version: "2024.3",
		Layout:  layout,
		Blocks: []catalog.Block{
			{Name: "Opening", Topics: []catalog.Topic{
				{Label: "Proper greeting", MaxPoints: 5, HasPoints: true, Applies: true},
			}},
			{Name: "Closure", Topics: []catalog.Topic{
				{Label: "Correct case closure", MaxPoints: 5, HasPoints: true, Applies: true},
				{Label: "Upsell attempted", Applies: true},
			}},
		},
	}
}

func sampleResult() scoring.EvaluationResult {
	return scoring.EvaluationResult{
		TotalScore:       8,
		MaxPossibleScore: 10,
		Percentage:       80,
		ScoredTopics: []scoring.ScoredTopic{
			{BlockName: "Opening", TopicLabel: "Proper greeting", Score: 3, MaxScore: 5, Evaluated: true, Applies: true, Justification: "greeting was rushed"},
			{BlockName: "Closure", TopicLabel: "Correct case closure", Score: 5, MaxScore: 5, Evaluated: true, Applies: true, Justification: "closed with resolution code"},
			{BlockName: "Closure", TopicLabel: "Upsell attempted", Applies: true, NotApplicable: true, Note: "not applicable"},
		},
		Narrative:       "Overall a competent call.",
		Recommendations: []string{"Slow down the greeting"},
		KeyMoments:      []scoring.KeyMoment{{TimestampMs: 65000, Kind: "closure", Description: "case closed"}},
		CatalogName:     "support",
		CatalogVersion:  "2024.3",
	}
}

func render(t *testing.T, layout catalog.LayoutVariant) []byte {
	t.Helper()
	data, err := Render(sampleCatalog(layout), scoring.Context{AgentName: "Ana", InteractionType: "support"}, sampleResult(), fixedTime)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty workbook")
	}
	return data
}

func TestRenderIsDeterministic(t *testing.T) {
	for _, layout := range []catalog.LayoutVariant{catalog.LayoutHorizontal, catalog.LayoutVertical} {
		first := render(t, layout)
		second := render(t, layout)
		if !bytes.Equal(first, second) {
			t.Fatalf("%s layout not byte-stable across renders", layout)
		}
	}
}

func TestRenderVerticalStructure(t *testing.T) {
	f, err := excelize.OpenReader(bytes.NewReader(render(t, catalog.LayoutVertical)))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	mustCell := func(cell, want string) {
		t.Helper()
		got, err := f.GetCellValue(sheetName, cell)
		if err != nil {
			t.Fatalf("read %s: %v", cell, err)
		}
		if got != want {
			t.Fatalf("cell %s = %q, want %q", cell, got, want)
		}
	}

	mustCell("A3", "Block")
	mustCell("A4", "Opening")
	mustCell("B4", "Proper greeting")
	mustCell("C4", "5")
	mustCell("D4", "3")
	mustCell("B5", "Correct case closure")
	mustCell("D5", "5")
	// NA topic renders its marker in both weight and score columns.
	mustCell("C6", "N/A")
	mustCell("D6", "N/A")
	// Totals rows follow the last topic.
	mustCell("A7", "Total")
	mustCell("D7", "8")
	mustCell("D8", "10")
	mustCell("D9", "80.0%")

	meta, err := f.GetCellValue(sheetName, "A2")
	if err != nil {
		t.Fatalf("read meta: %v", err)
	}
	if !strings.Contains(meta, "2026-03-14 09:30:00 UTC") {
		t.Fatalf("generation timestamp missing from header: %q", meta)
	}
}

func TestRenderVerticalAttachesJustifications(t *testing.T) {
	f, err := excelize.OpenReader(bytes.NewReader(render(t, catalog.LayoutVertical)))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	comments, err := f.GetComments(sheetName)
	if err != nil {
		t.Fatalf("comments: %v", err)
	}
	texts := map[string]bool{}
	for _, c := range comments {
		for _, p := range c.Paragraph {
			texts[p.Text] = true
		}
	}
	for _, want := range []string{"greeting was rushed", "closed with resolution code"} {
		if !texts[want] {
			t.Fatalf("justification %q not attached; have %v", want, texts)
		}
	}
}

func TestRenderHorizontalEveryTopicOnce(t *testing.T) {
	f, err := excelize.OpenReader(bytes.NewReader(render(t, catalog.LayoutHorizontal)))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) < 6 {
		t.Fatalf("expected 6 rows, got %d", len(rows))
	}

	topicRow := rows[3]
	counts := map[string]int{}
	for _, cell := range topicRow {
		if cell != "" {
			counts[cell]++
		}
	}
	for _, label := range []string{"Proper greeting", "Correct case closure", "Upsell attempted"} {
		if counts[label] != 1 {
			t.Fatalf("topic %q appears %d times in header row", label, counts[label])
		}
	}

	// Weight row carries the max points verbatim, N/A for pointless topics.
	weightRow := rows[4]
	joined := strings.Join(weightRow, "|")
	if !strings.Contains(joined, "5") || !strings.Contains(joined, "N/A") {
		t.Fatalf("weight row incomplete: %v", weightRow)
	}

	dataRow := rows[5]
	if dataRow[0] != "Ana" {
		t.Fatalf("agent missing from data row: %v", dataRow)
	}
}

func TestCriticalTopicTokenAndStyleAgree(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	styles, err := newStyleSet(f)
	if err != nil {
		t.Fatalf("styles: %v", err)
	}

	missed := scoring.ScoredTopic{Evaluated: true, Applies: true, Critical: true, Score: 5, MaxScore: 10}
	if got := scoreCellText(missed); got != "CRITICAL: FAIL" {
		t.Fatalf("token = %v, want CRITICAL: FAIL", got)
	}
	if styles.scoreStyle(missed) != styles.fail {
		t.Fatalf("missed critical topic styled %d, want fail %d", styles.scoreStyle(missed), styles.fail)
	}

	met := scoring.ScoredTopic{Evaluated: true, Applies: true, Critical: true, Score: 10, MaxScore: 10}
	if got := scoreCellText(met); got != "CRITICAL: PASS" {
		t.Fatalf("token = %v, want CRITICAL: PASS", got)
	}
	if styles.scoreStyle(met) != styles.pass {
		t.Fatalf("met critical topic styled %d, want pass %d", styles.scoreStyle(met), styles.pass)
	}
}

func TestRenderHorizontalBlockHeadersMerged(t *testing.T) {
	f, err := excelize.OpenReader(bytes.NewReader(render(t, catalog.LayoutHorizontal)))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	merged, err := f.GetMergeCells(sheetName)
	if err != nil {
		t.Fatalf("merge cells: %v", err)
	}
	foundClosure := false
	for _, m := range merged {
		if m.GetCellValue() == "Closure" {
			foundClosure = true
		}
	}
	if !foundClosure {
		t.Fatal("Closure block header not merged across its topic columns")
	}
}
