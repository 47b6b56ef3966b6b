package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"audit-backend/internal/scoring"
)

// styleSet holds the workbook style IDs. Styling is a pure function of
// (applies, criticality, score vs max); nothing here depends on external
// state.
type styleSet struct {
	title       int
	meta        int
	blockHeader int
	topicHeader int
	weight      int
	pass        int
	fail        int
	partial     int
	notApplic   int
	unevaluated int
	totals      int
	observation int
}

func newStyleSet(f *excelize.File) (styleSet, error) {
	var s styleSet
	var err error

	build := func(dst *int, style *excelize.Style) {
		if err != nil {
			return
		}
		var id int
		id, err = f.NewStyle(style)
		if err == nil {
			*dst = id
		}
	}

	thin := []excelize.Border{
		{Type: "left", Color: "999999", Style: 1},
		{Type: "right", Color: "999999", Style: 1},
		{Type: "top", Color: "999999", Style: 1},
		{Type: "bottom", Color: "999999", Style: 1},
	}
	center := &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true}

	build(&s.title, &excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	build(&s.meta, &excelize.Style{
		Font:      &excelize.Font{Size: 10, Color: "555555"},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	build(&s.blockHeader, &excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"305496"}, Pattern: 1},
		Alignment: center,
		Border:    thin,
	})
	build(&s.topicHeader, &excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"D9E1F2"}, Pattern: 1},
		Alignment: center,
		Border:    thin,
	})
	build(&s.weight, &excelize.Style{
		Font:      &excelize.Font{Italic: true, Size: 10},
		Alignment: center,
		Border:    thin,
	})
	build(&s.pass, &excelize.Style{
		Font:      &excelize.Font{Color: "006100", Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"C6EFCE"}, Pattern: 1},
		Alignment: center,
		Border:    thin,
	})
	build(&s.fail, &excelize.Style{
		Font:      &excelize.Font{Color: "9C0006", Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"FFC7CE"}, Pattern: 1},
		Alignment: center,
		Border:    thin,
	})
	build(&s.partial, &excelize.Style{
		Font:      &excelize.Font{Color: "9C6500"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"FFEB9C"}, Pattern: 1},
		Alignment: center,
		Border:    thin,
	})
	build(&s.notApplic, &excelize.Style{
		Font:      &excelize.Font{Color: "808080", Italic: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"EDEDED"}, Pattern: 1},
		Alignment: center,
		Border:    thin,
	})
	build(&s.unevaluated, &excelize.Style{
		Font:      &excelize.Font{Color: "808080"},
		Alignment: center,
		Border:    thin,
	})
	build(&s.totals, &excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"D9E1F2"}, Pattern: 1},
		Alignment: center,
		Border:    thin,
	})
	build(&s.observation, &excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "top", WrapText: true},
		Border:    thin,
	})

	if err != nil {
		return styleSet{}, fmt.Errorf("build styles: %w", err)
	}
	return s, nil
}

// scoreStyle picks the conditional style for a topic's score cell.
func (s styleSet) scoreStyle(t scoring.ScoredTopic) int {
	switch {
	case t.NotApplicable:
		return s.notApplic
	case !t.Evaluated:
		return s.unevaluated
	// A missed critical topic is a failure whatever the partial score; the
	// style has to agree with the CRITICAL: FAIL token.
	case t.Critical && t.Score < t.MaxScore:
		return s.fail
	case t.Score >= t.MaxScore && t.MaxScore > 0:
		return s.pass
	case t.Score <= 0:
		return s.fail
	default:
		return s.partial
	}
}
