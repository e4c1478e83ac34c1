// Package report renders a reconciliation result: an xlsx workbook mirroring
// the sheet layout auditors already know, and console tables for interactive
// runs. Everything here is presentation; the numbers come from the summary
// package untouched.
package report

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/traceability-cli/internal/model"
)

// Sheet header fill colors (ARGB).
const (
	fillBlue   = "FF4472C4" // summary and full traceability
	fillOrange = "FFC55A11" // mismatches
	fillGreen  = "FF28A745" // matched items
	fillAmber  = "FFFFA500" // potential matches
	fillRed    = "FFE74C3C" // unlinked issues
)

// WriteWorkbook writes the full report artifact to path.
func WriteWorkbook(path string, result *model.Result) error {
	if path == "" {
		return eris.New("report: empty output path")
	}
	if result == nil {
		return eris.New("report: nil result")
	}

	f := xlsx.NewFile()

	if err := addSummarySheet(f, result); err != nil {
		return err
	}
	if err := addTraceabilitySheet(f, result); err != nil {
		return err
	}
	if err := addMismatchesSheet(f, result); err != nil {
		return err
	}
	if err := addMatchedSheet(f, result); err != nil {
		return err
	}
	if err := addMatchedSummarySheet(f, result); err != nil {
		return err
	}
	if err := addPotentialMatchesSheet(f, result); err != nil {
		return err
	}
	if err := addUnlinkedSheet(f, result); err != nil {
		return err
	}

	return eris.Wrapf(f.Save(path), "report: save %s", path)
}

func addSummarySheet(f *xlsx.File, result *model.Result) error {
	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}
	s := result.Summary

	titleRow(sheet, "Jira-ADO Traceability Report", fillBlue)
	// Generated-at is artifact metadata; it appears here and nowhere else.
	addRow(sheet, "Generated on:", time.Now().Format("2006-01-02 15:04:05"))
	addRow(sheet)

	addRow(sheet, "Summary Statistics")
	headerRow(sheet, fillBlue, "Metric", "Count")
	addCountRow(sheet, "Total Jira Issues", s.Total)
	addCountRow(sheet, "Linked to ADO", s.Linked)
	addCountRow(sheet, "Not Linked to ADO", s.Unlinked)
	addCountRow(sheet, "Unresolvable Links", s.UnresolvableLinks)
	addCountRow(sheet, "Duplicate Links", s.DuplicateLinks)
	addCountRow(sheet, "Perfect Matches", s.PerfectMatches)
	addCountRow(sheet, "Status Mismatches", s.Status.Mismatch)
	addCountRow(sheet, "Severity Mismatches", s.Severity.Mismatch)
	addCountRow(sheet, "Assignee Mismatches", s.Assignee.Mismatch)
	addCountRow(sheet, "Potential Matches (Similarity)", s.SuggestionCount)

	return sheetColWidths(sheet, 2, 32)
}

// traceabilityHeader is the column set shared by the full, mismatch, and
// matched sheets so rows can be eyeballed across them.
var traceabilityHeader = []string{
	"Jira Key", "Jira Summary", "Jira Status", "Jira Severity", "Jira Assignee", "Jira Type",
	"ADO ID", "ADO Title", "ADO State", "ADO Assigned To", "ADO Severity", "ADO Type",
	"Status Verdict", "Severity Verdict", "Assignee Verdict", "Link",
}

func pairCells(p model.Pair) []string {
	wi := model.WorkItem{}
	if p.WorkItem != nil {
		wi = *p.WorkItem
	}
	return []string{
		p.Issue.Key, p.Issue.Summary, p.Issue.Status, p.Issue.Severity, p.Issue.Assignee, p.Issue.Type,
		p.Issue.ADOID, wi.Title, wi.State, wi.AssignedTo, wi.Severity, wi.Type,
		string(p.Verdict.Status), string(p.Verdict.Severity), string(p.Verdict.Assignee), linkLabel(p),
	}
}

func unlinkedCells(issue model.Issue) []string {
	return []string{
		issue.Key, issue.Summary, issue.Status, issue.Severity, issue.Assignee, issue.Type,
		"", "", "", "", "", "",
		"", "", "", "Not Linked",
	}
}

func linkLabel(p model.Pair) string {
	switch {
	case p.Duplicate:
		return "Linked (Duplicate Claim)"
	case !p.Resolved():
		return "Linked (Unresolvable)"
	default:
		return "Linked"
	}
}

func addTraceabilitySheet(f *xlsx.File, result *model.Result) error {
	sheet, err := f.AddSheet("Full Traceability")
	if err != nil {
		return eris.Wrap(err, "report: add traceability sheet")
	}

	headerRow(sheet, fillBlue, traceabilityHeader...)
	for _, p := range result.Pairs {
		addRow(sheet, pairCells(p)...)
	}
	for _, sug := range result.Suggestions {
		addRow(sheet, unlinkedCells(sug.Issue)...)
	}

	return sheetColWidths(sheet, len(traceabilityHeader), 28)
}

func addMismatchesSheet(f *xlsx.File, result *model.Result) error {
	sheet, err := f.AddSheet("Mismatches")
	if err != nil {
		return eris.Wrap(err, "report: add mismatches sheet")
	}

	headerRow(sheet, fillOrange, traceabilityHeader...)
	for _, p := range result.Pairs {
		v := p.Verdict
		if v.Status == model.OutcomeMismatch || v.Severity == model.OutcomeMismatch || v.Assignee == model.OutcomeMismatch {
			addRow(sheet, pairCells(p)...)
		}
	}

	return sheetColWidths(sheet, len(traceabilityHeader), 28)
}

func addMatchedSheet(f *xlsx.File, result *model.Result) error {
	sheet, err := f.AddSheet("Matched Items")
	if err != nil {
		return eris.Wrap(err, "report: add matched sheet")
	}

	headerRow(sheet, fillGreen, traceabilityHeader...)
	for _, p := range result.Pairs {
		addRow(sheet, pairCells(p)...)
	}

	return sheetColWidths(sheet, len(traceabilityHeader), 28)
}

func addMatchedSummarySheet(f *xlsx.File, result *model.Result) error {
	sheet, err := f.AddSheet("Matched Summary")
	if err != nil {
		return eris.Wrap(err, "report: add matched summary sheet")
	}
	s := result.Summary

	titleRow(sheet, "Matched (Linked) Items Summary Report", fillGreen)
	addRow(sheet)

	addRow(sheet, "Overall Linked Items Statistics")
	headerRow(sheet, fillGreen, "Metric", "Count", "Percentage")
	addRow(sheet, "Total Linked Items", fmt.Sprint(s.Linked), "100%")
	addRow(sheet, "Perfect Matches (All 3 Criteria)", fmt.Sprint(s.PerfectMatches), pctLabel(s.PerfectPct, s.Linked))
	addRow(sheet, "Unresolvable Links", fmt.Sprint(s.UnresolvableLinks), "")
	addRow(sheet, "Duplicate Links", fmt.Sprint(s.DuplicateLinks), "")
	addRow(sheet)

	// Percentages are over determinable outcomes only; the determinable
	// count rides along so a reader can judge the statistical weight.
	addRow(sheet, "Comparison Quality (Linked Items)")
	headerRow(sheet, fillGreen, "Dimension", "Matches", "Mismatches", "Unknown", "Determinable", "Match %")
	addTallyRow(sheet, "Status", s.Status)
	addTallyRow(sheet, "Severity", s.Severity)
	addTallyRow(sheet, "Assignee", s.Assignee)
	addRow(sheet)

	addBreakdown(sheet, "Jira Status Breakdown (Linked Items)", "Status", s.JiraStatuses)
	addBreakdown(sheet, "ADO State Breakdown (Linked Items)", "State", s.ADOStates)
	addBreakdown(sheet, "Severity Breakdown", "Severity", s.Severities)
	addBreakdown(sheet, "Work Item Type Breakdown", "Type", s.WorkItemTypes)
	addBreakdown(sheet, "Top Assignees", "Assignee", s.TopAssignees)

	return sheetColWidths(sheet, 6, 34)
}

func addPotentialMatchesSheet(f *xlsx.File, result *model.Result) error {
	sheet, err := f.AddSheet("Potential Matches")
	if err != nil {
		return eris.Wrap(err, "report: add potential matches sheet")
	}

	total := 0
	for _, sug := range result.Suggestions {
		total += len(sug.Candidates)
	}
	if total == 0 {
		addRow(sheet, "No potential matches found")
		addRow(sheet, "All unlinked Jira items have no similar titles in recent Azure DevOps work items.")
		return nil
	}

	titleRow(sheet, "Potential Matches Based on Title Similarity", fillAmber)
	addRow(sheet, "Suggested matches using order-insensitive title similarity. Only candidates at or above the configured threshold are shown.")
	addRow(sheet)
	headerRow(sheet, fillAmber,
		"Jira Key", "Jira Summary", "ADO ID", "ADO Title", "ADO State", "ADO Type", "Score", "Confidence")

	for _, sug := range result.Suggestions {
		for _, c := range sug.Candidates {
			row := sheet.AddRow()
			row.AddCell().SetString(sug.Issue.Key)
			row.AddCell().SetString(sug.Issue.Summary)
			row.AddCell().SetString(c.WorkItemID)
			row.AddCell().SetString(c.Title)
			row.AddCell().SetString(c.State)
			row.AddCell().SetString(c.Type)
			row.AddCell().SetInt(c.Score)
			row.AddCell().SetString(c.Confidence)
		}
	}

	return sheetColWidths(sheet, 8, 40)
}

func addUnlinkedSheet(f *xlsx.File, result *model.Result) error {
	sheet, err := f.AddSheet("Unlinked Issues")
	if err != nil {
		return eris.Wrap(err, "report: add unlinked sheet")
	}

	headerRow(sheet, fillRed, "Jira Key", "Jira Summary", "Jira Status", "Jira Severity", "Jira Assignee")
	for _, sug := range result.Suggestions {
		issue := sug.Issue
		addRow(sheet, issue.Key, issue.Summary, issue.Status, issue.Severity, issue.Assignee)
	}

	return sheetColWidths(sheet, 5, 40)
}

// --- cell helpers ---

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func addCountRow(sheet *xlsx.Sheet, label string, count int) {
	row := sheet.AddRow()
	row.AddCell().SetString(label)
	row.AddCell().SetInt(count)
}

func addTallyRow(sheet *xlsx.Sheet, dimension string, t model.Tally) {
	row := sheet.AddRow()
	row.AddCell().SetString(dimension)
	row.AddCell().SetInt(t.Match)
	row.AddCell().SetInt(t.Mismatch)
	row.AddCell().SetInt(t.Unknown)
	row.AddCell().SetInt(t.Determinable())
	row.AddCell().SetString(pctLabel(t.MatchPct, t.Determinable()))
}

func addBreakdown(sheet *xlsx.Sheet, title, keyHeader string, groups []model.GroupCount) {
	addRow(sheet, title)
	headerRow(sheet, fillGreen, keyHeader, "Count")
	for _, g := range groups {
		addCountRow(sheet, g.Key, g.Count)
	}
	addRow(sheet)
}

// pctLabel renders a percentage, or n/a when nothing was determinable.
func pctLabel(pct float64, determinable int) string {
	if determinable == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", pct)
}

func titleRow(sheet *xlsx.Sheet, title, color string) {
	row := sheet.AddRow()
	cell := row.AddCell()
	cell.SetString(title)
	style := xlsx.NewStyle()
	style.Font = *xlsx.NewFont(14, "Calibri")
	style.Font.Bold = true
	style.Font.Color = "FFFFFFFF"
	style.Fill = *xlsx.NewFill("solid", color, color)
	style.ApplyFont = true
	style.ApplyFill = true
	cell.SetStyle(style)
}

func headerRow(sheet *xlsx.Sheet, color string, headers ...string) {
	style := xlsx.NewStyle()
	style.Font = *xlsx.NewFont(11, "Calibri")
	style.Font.Bold = true
	style.Font.Color = "FFFFFFFF"
	style.Fill = *xlsx.NewFill("solid", color, color)
	style.ApplyFont = true
	style.ApplyFill = true

	row := sheet.AddRow()
	for _, h := range headers {
		cell := row.AddCell()
		cell.SetString(h)
		cell.SetStyle(style)
	}
}

func sheetColWidths(sheet *xlsx.Sheet, cols int, width float64) error {
	sheet.SetColWidth(0, cols-1, width)
	return nil
}
