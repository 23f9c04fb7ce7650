package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Labels used by the basic single-field extractions on the detail page.
const (
	LabelPTN      = "PTN #:"
	LabelName     = "Project Name:"
	LabelScope    = "Project Scope:"
	LabelCertType = "Last Certification Letter Type:"
)

// DetailFieldMappings is the full label set extracted from an application
// summary page. The labels are the tracker's own cell texts and must track
// its markup verbatim.
var DetailFieldMappings = []FieldMapping{
	{Label: "Office ID:", Key: "Office ID"},
	{Label: "Application #:", Key: "Application #"},
	{Label: "File #:", Key: "File #"},
	{Label: "PTN #:", Key: "PTN #"},
	{Label: "OPSC #:", Key: "OPSC #"},
	{Label: "Project Type:", Key: "Project Type"},
	{Label: "Project Class:", Key: "Project Class"},
	{Label: "Special Type:", Key: "Special Type"},
	{Label: "# Of Incr:", Key: "Number of Increments"},
	{Label: "Address:", Key: "Address"},
	{Label: "City:", Key: "City"},
	{Label: "Zip:", Key: "Zip"},
	{Label: "Estimated Amt:", Key: "Estimated Amount"},
	{Label: "Contracted Amt:", Key: "Contracted Amount"},
	{Label: "Construction Change Document Amt:", Key: "Change Document Amount"},
	{Label: "Final Project Cost:", Key: "Final Project Cost"},
	{Label: "Adj Est.Date#1:", Key: "Adjustment Date 1"},
	{Label: "Adj Est.Amt#1:", Key: "Adjustment Amount 1"},
	{Label: "Adj Est.Date#2:", Key: "Adjustment Date 2"},
	{Label: "Adj Est.Amt#2:", Key: "Adjustment Amount 2"},
	{Label: "Received Date:", Key: "Received Date"},
	{Label: "Approved Date:", Key: "Approved Date"},
	{Label: "Approval Ext. Date:", Key: "Approval Extension Date"},
	{Label: "Closed Date:", Key: "Closed Date"},
	{Label: "Complete Submittal Received Date:", Key: "Complete Submittal Date"},
}

// IndicatorFields are the checkbox-style flags on the application summary
// page. The cell text doubles as the output column name.
var IndicatorFields = []string{
	"SB 575",
	"New Campus",
	"Modernization",
	"Auto Fire Detection",
	"Sprinkler System",
	"Access Compliance",
	"Fire & Life Safety",
	"Structural Safety",
	"Field Review",
	"CGS Review",
	"HPS",
}

// certificationPatterns are the known closeout phrasings, in priority order.
// The first pattern that matches any text node wins; within a pattern the
// first document-order match wins.
var certificationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)#\d+-Certification & Close of File(?:\s+Per EDU Code \d+\(\w+\)\s+OR\s+\d+\(\w+\))?`),
	regexp.MustCompile(`(?i)DSA 301P Notification of Requirement for Certification`),
	regexp.MustCompile(`(?i)#\d+-Close of File w/o Certification - Exceptions`),
	regexp.MustCompile(`(?i)1 YR VOID`),
}

// Certification extracts the certification letter type from a closeout page:
// exact label adjacency first, then the pattern fallback over all text nodes.
// Returns the empty string when neither path yields anything.
func Certification(doc *goquery.Document) string {
	if value, ok := LabelValue(doc, LabelCertType); ok && value != "" {
		return value
	}

	texts := textNodesInOrder(doc)
	for _, pattern := range certificationPatterns {
		for _, text := range texts {
			if match := pattern.FindString(text); match != "" {
				return strings.TrimSpace(match)
			}
		}
	}
	return ""
}
