package report

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"audit-backend/internal/catalog"
	"audit-backend/internal/scoring"
)

// Vertical layout: one row per topic, blocks merged down the left column, a
// dedicated score column with conditional styling, then merged totals rows
// and a merged observations block.
func renderVertical(f *excelize.File, styles styleSet, cat catalog.Catalog, auditCtx scoring.Context, result scoring.EvaluationResult, generatedAt time.Time) error {
	const (
		colBlock  = 1
		colTopic  = 2
		colWeight = 3
		colScore  = 4
		width     = 4
	)

	if err := writeHeader(f, styles, cat, auditCtx, generatedAt, width, 1, 2); err != nil {
		return err
	}

	headerRow := 3
	for i, header := range []string{"Block", "Topic", "Weight", "Score"} {
		if err := setStyledCell(f, styles.topicHeader, colBlock+i, headerRow, header); err != nil {
			return err
		}
	}

	row := headerRow + 1
	for _, run := range groupByBlock(result.ScoredTopics) {
		if err := setMergedCell(f, styles.blockHeader, colBlock, row, colBlock, row+len(run.Topics)-1, run.Name); err != nil {
			return err
		}
		for _, topic := range run.Topics {
			if err := setStyledCell(f, styles.observation, colTopic, row, topic.TopicLabel); err != nil {
				return err
			}
			if err := setStyledCell(f, styles.weight, colWeight, row, weightCellText(topic)); err != nil {
				return err
			}

			cell, err := excelize.CoordinatesToCellName(colScore, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, scoreCellText(topic)); err != nil {
				return err
			}
			if err := f.SetCellStyle(sheetName, cell, cell, styles.scoreStyle(topic)); err != nil {
				return err
			}
			if err := addJustification(f, cell, topic); err != nil {
				return err
			}
			row++
		}
	}

	totals := []struct {
		label string
		value any
	}{
		{"Total", result.TotalScore},
		{"Max possible", result.MaxPossibleScore},
		{"Percentage", fmt.Sprintf("%.1f%%", result.Percentage)},
	}
	for _, t := range totals {
		if err := setMergedCell(f, styles.totals, colBlock, row, colWeight, row, t.label); err != nil {
			return err
		}
		if err := setStyledCell(f, styles.totals, colScore, row, t.value); err != nil {
			return err
		}
		row++
	}

	if err := setMergedCell(f, styles.topicHeader, colBlock, row, colScore, row, "Observations"); err != nil {
		return err
	}
	row++
	bodyEnd := row + 5
	if err := setMergedCell(f, styles.observation, colBlock, row, colScore, bodyEnd, observationsText(result)); err != nil {
		return err
	}

	if err := f.SetColWidth(sheetName, "B", "B", 45); err != nil {
		return err
	}
	return f.SetColWidth(sheetName, "A", "A", 20)
}
