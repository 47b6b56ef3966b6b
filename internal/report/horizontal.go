package report

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"audit-backend/internal/catalog"
	"audit-backend/internal/scoring"
)

// Horizontal layout: one data row per audit. Row 3 carries merged block
// headers, row 4 topic labels, row 5 weights, row 6 the scores, with summary
// and observations columns trailing the last topic.
func renderHorizontal(f *excelize.File, styles styleSet, cat catalog.Catalog, auditCtx scoring.Context, result scoring.EvaluationResult, generatedAt time.Time) error {
	const (
		rowTitle  = 1
		rowMeta   = 2
		rowBlocks = 3
		rowTopics = 4
		rowWeight = 5
		rowData   = 6
	)
	runs := groupByBlock(result.ScoredTopics)
	topicCount := len(result.ScoredTopics)

	// Column 1 holds the agent; topics start at column 2. Four trailing
	// columns: total, max, percentage, observations.
	firstTopicCol := 2
	totalCol := firstTopicCol + topicCount
	maxCol := totalCol + 1
	pctCol := maxCol + 1
	obsCol := pctCol + 1

	if err := writeHeader(f, styles, cat, auditCtx, generatedAt, obsCol, rowTitle, rowMeta); err != nil {
		return err
	}

	// Agent column header spans the three header rows.
	if err := setMergedCell(f, styles.topicHeader, 1, rowBlocks, 1, rowWeight, "Agent"); err != nil {
		return err
	}

	col := firstTopicCol
	for _, run := range runs {
		if err := setMergedCell(f, styles.blockHeader, col, rowBlocks, col+len(run.Topics)-1, rowBlocks, run.Name); err != nil {
			return err
		}
		for _, topic := range run.Topics {
			if err := setStyledCell(f, styles.topicHeader, col, rowTopics, topic.TopicLabel); err != nil {
				return err
			}
			if err := setStyledCell(f, styles.weight, col, rowWeight, weightCellText(topic)); err != nil {
				return err
			}
			col++
		}
	}

	for i, header := range []string{"Total", "Max", "%", "Observations"} {
		if err := setMergedCell(f, styles.topicHeader, totalCol+i, rowBlocks, totalCol+i, rowWeight, header); err != nil {
			return err
		}
	}

	// The data row.
	if err := setStyledCell(f, styles.observation, 1, rowData, auditCtx.AgentName); err != nil {
		return err
	}
	col = firstTopicCol
	for _, topic := range result.ScoredTopics {
		cell, err := excelize.CoordinatesToCellName(col, rowData)
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
		col++
	}

	if err := setStyledCell(f, styles.totals, totalCol, rowData, result.TotalScore); err != nil {
		return err
	}
	if err := setStyledCell(f, styles.totals, maxCol, rowData, result.MaxPossibleScore); err != nil {
		return err
	}
	if err := setStyledCell(f, styles.totals, pctCol, rowData, fmt.Sprintf("%.1f%%", result.Percentage)); err != nil {
		return err
	}
	if err := setStyledCell(f, styles.observation, obsCol, rowData, observationsText(result)); err != nil {
		return err
	}

	obsName, err := excelize.ColumnNumberToName(obsCol)
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, obsName, obsName, 60); err != nil {
		return err
	}
	return f.SetRowHeight(sheetName, rowData, 120)
}

// writeHeader renders the merged title and metadata rows shared by both
// layouts. The generation timestamp lives in the metadata cell.
func writeHeader(f *excelize.File, styles styleSet, cat catalog.Catalog, auditCtx scoring.Context, generatedAt time.Time, width, rowTitle, rowMeta int) error {
	title := fmt.Sprintf("Interaction Audit - %s rubric v%s", cat.Name, cat.Version)
	if err := setMergedCell(f, styles.title, 1, rowTitle, width, rowTitle, title); err != nil {
		return err
	}
	meta := fmt.Sprintf("Agent: %s | Type: %s | Generated: %s",
		auditCtx.AgentName, auditCtx.InteractionType, generatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	return setMergedCell(f, styles.meta, 1, rowMeta, width, rowMeta, meta)
}

func setStyledCell(f *excelize.File, styleID, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(sheetName, cell, value); err != nil {
		return err
	}
	return f.SetCellStyle(sheetName, cell, cell, styleID)
}

func setMergedCell(f *excelize.File, styleID, startCol, startRow, endCol, endRow int, value any) error {
	start, err := excelize.CoordinatesToCellName(startCol, startRow)
	if err != nil {
		return err
	}
	end, err := excelize.CoordinatesToCellName(endCol, endRow)
	if err != nil {
		return err
	}
	if start != end {
		if err := f.MergeCell(sheetName, start, end); err != nil {
			return err
		}
	}
	if err := f.SetCellValue(sheetName, start, value); err != nil {
		return err
	}
	return f.SetCellStyle(sheetName, start, end, styleID)
}
