package parser

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func parseHTML(t *testing.T, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func TestLabelValue(t *testing.T) {
	doc := parseHTML(t, `
		<table>
			<tr><td>PTN #:</td><td> 61-116 </td></tr>
			<tr><td>Project Name:</td><td>Gymnasium&nbsp;Addition</td></tr>
		</table>`)

	tests := []struct {
		label    string
		expected string
		found    bool
	}{
		{label: "PTN #:", expected: "61-116", found: true},
		{label: "ptn #:", expected: "61-116", found: true},
		{label: "Project Name:", expected: "Gymnasium Addition", found: true},
		{label: "Project Scope:", expected: "", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			value, ok := LabelValue(doc, tt.label)
			if ok != tt.found {
				t.Fatalf("found = %v, want %v", ok, tt.found)
			}
			if value != tt.expected {
				t.Fatalf("value = %q, want %q", value, tt.expected)
			}
		})
	}
}

func TestLabelValueUsesDocumentOrder(t *testing.T) {
	// The value cell lives in a sibling table; adjacency is document
	// order, not shared-row structure.
	doc := parseHTML(t, `
		<table><tr><td>Office ID:</td></tr></table>
		<table><tr><td>04</td></tr></table>`)

	value, ok := LabelValue(doc, "Office ID:")
	if !ok || value != "04" {
		t.Fatalf("value = %q (found %v), want %q across tables", value, ok, "04")
	}
}

func TestLabelValueTrailingLabel(t *testing.T) {
	doc := parseHTML(t, `<table><tr><td>Closed Date:</td></tr></table>`)

	if _, ok := LabelValue(doc, "Closed Date:"); ok {
		t.Fatalf("label with no following cell should report not found")
	}
}

func TestExtractOmitsEmptyAndMissing(t *testing.T) {
	doc := parseHTML(t, `
		<table>
			<tr><td>Office ID:</td><td>04</td></tr>
			<tr><td>City:</td><td>  </td></tr>
		</table>`)

	out := Extract(doc, []FieldMapping{
		{Label: "Office ID:", Key: "Office ID"},
		{Label: "City:", Key: "City"},
		{Label: "Zip:", Key: "Zip"},
	})

	if got := out["Office ID"]; got != "04" {
		t.Fatalf("Office ID = %q, want %q", got, "04")
	}
	if _, ok := out["City"]; ok {
		t.Fatalf("empty value should be omitted, got %q", out["City"])
	}
	if _, ok := out["Zip"]; ok {
		t.Fatalf("missing label should be omitted")
	}
}

func TestExtractIndicators(t *testing.T) {
	doc := parseHTML(t, `
		<table>
			<tr>
				<td><input type="checkbox" checked disabled></td><td>Modernization</td>
				<td><input type="checkbox" disabled></td><td>New Campus</td>
			</tr>
		</table>`)

	out := ExtractIndicators(doc, []string{"Modernization", "New Campus", "HPS"})

	if got := out["Modernization"]; got != "Yes" {
		t.Fatalf("Modernization = %q, want Yes", got)
	}
	if got := out["New Campus"]; got != "No" {
		t.Fatalf("New Campus = %q, want No", got)
	}
	if _, ok := out["HPS"]; ok {
		t.Fatalf("indicator without a label cell must be omitted, not defaulted")
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{in: "  a  b  ", expected: "a b"},
		{in: "a b", expected: "a b"},
		{in: "\n\t x \t\n", expected: "x"},
		{in: "", expected: ""},
	}
	for _, tt := range tests {
		if got := CleanText(tt.in); got != tt.expected {
			t.Fatalf("CleanText(%q) = %q, want %q", tt.in, got, tt.expected)
		}
	}
}

func TestCertificationExactLabel(t *testing.T) {
	doc := parseHTML(t, `
		<table>
			<tr><td>Last Certification Letter Type:</td><td>#1-Certification &amp; Close of File</td></tr>
		</table>`)

	if got := Certification(doc); got != "#1-Certification & Close of File" {
		t.Fatalf("certification = %q", got)
	}
}

func TestCertificationPatternFallback(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{
			name:     "close of file",
			body:     `<p>Project status: #5-Certification & Close of File issued 2019</p>`,
			expected: "#5-Certification & Close of File",
		},
		{
			name:     "close of file with edu code",
			body:     `<p>#2-Certification & Close of File Per EDU Code 17309(a) OR 81147(b)</p>`,
			expected: "#2-Certification & Close of File Per EDU Code 17309(a) OR 81147(b)",
		},
		{
			name:     "301p notification",
			body:     `<p>dsa 301p notification of requirement for certification</p>`,
			expected: "dsa 301p notification of requirement for certification",
		},
		{
			name:     "without certification",
			body:     `<p>#4-Close of File w/o Certification - Exceptions</p>`,
			expected: "#4-Close of File w/o Certification - Exceptions",
		},
		{
			name:     "one year void",
			body:     `<p>Status 1 YR VOID</p>`,
			expected: "1 YR VOID",
		},
		{
			name:     "nothing",
			body:     `<p>No closeout data on record</p>`,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parseHTML(t, tt.body)
			if got := Certification(doc); got != tt.expected {
				t.Fatalf("certification = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestCertificationPatternPriority(t *testing.T) {
	// The close-of-file pattern outranks 1 YR VOID even when VOID
	// appears first on the page.
	doc := parseHTML(t, `
		<p>1 YR VOID</p>
		<p>#3-Certification & Close of File</p>`)

	if got := Certification(doc); got != "#3-Certification & Close of File" {
		t.Fatalf("certification = %q, want the higher-priority match", got)
	}
}
