package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/mmpvdesign/dsa-scrape/models"
)

func newTestScraper(t *testing.T) (*Scraper, *httpmock.MockTransport) {
	t.Helper()
	s, err := New(testConfig())
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	transport := httpmock.NewMockTransport()
	s.Client().SetTransport(transport)
	return s, transport
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(http.StatusOK, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func buildListPage(rows ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><table id="ctl00_MainContent_gdvsch">`)
	b.WriteString(`<tr><th>App Id</th><th>PTN</th><th>Project Name</th></tr>`)
	for _, row := range rows {
		b.WriteString(row)
	}
	b.WriteString(`</table></body></html>`)
	return b.String()
}

func listRow(originID, appID, name string) string {
	return fmt.Sprintf(
		`<tr><td><a href="ApplicationSummary.aspx?OriginId=%s&amp;AppId=%s">%s %s</a></td><td></td><td>%s</td></tr>`,
		originID, appID, originID, appID, name)
}

func TestFetchProjectList(t *testing.T) {
	s, transport := newTestScraper(t)

	page := buildListPage(
		listRow("04", "1001", "Elm Street Elementary"),
		listRow("04", "1002", "Oak Hill Middle School"),
	)
	transport.RegisterResponder("GET",
		"http://example.test/ProjectList.aspx?ClientId=36-67",
		htmlResponder(page))

	records, err := s.FetchProjectList(context.Background(), "36-67")
	if err != nil {
		t.Fatalf("fetch list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}

	first := records[0]
	if got := first[models.FieldAppID]; got != "04 1001" {
		t.Fatalf("app id = %q, want %q", got, "04 1001")
	}
	if got := first[models.FieldLink]; got != "http://example.test/ApplicationSummary.aspx?OriginId=04&AppId=1001" {
		t.Fatalf("link = %q", got)
	}
	if got := first[models.FieldName]; got != "Elm Street Elementary" {
		t.Fatalf("name = %q", got)
	}
	for _, key := range []string{models.FieldPTN, models.FieldScope, models.FieldCertType} {
		if value, ok := first[key]; !ok || value != "" {
			t.Fatalf("field %q = %q, want present and empty", key, value)
		}
	}

	if got := records[1][models.FieldAppID]; got != "04 1002" {
		t.Fatalf("second app id = %q, want %q (page order)", got, "04 1002")
	}
}

func TestFetchProjectListMissingTable(t *testing.T) {
	s, transport := newTestScraper(t)

	transport.RegisterResponder("GET",
		"http://example.test/ProjectList.aspx?ClientId=36-67",
		htmlResponder(`<html><body><p>No projects</p></body></html>`))

	records, err := s.FetchProjectList(context.Background(), "36-67")
	if err != nil {
		t.Fatalf("fetch list: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("records = %d, want 0 for missing table", len(records))
	}
}

func TestFetchProjectListSkipsMalformedRows(t *testing.T) {
	s, transport := newTestScraper(t)

	page := buildListPage(
		// too few cells
		`<tr><td><a href="ApplicationSummary.aspx?OriginId=04&amp;AppId=1001">04 1001</a></td></tr>`,
		// no detail anchor
		`<tr><td><a href="SomewhereElse.aspx">x</a></td><td></td><td>Not a project</td></tr>`,
		listRow("04", "1003", "Pine Valley High"),
	)
	transport.RegisterResponder("GET",
		"http://example.test/ProjectList.aspx?ClientId=36-67",
		htmlResponder(page))

	records, err := s.FetchProjectList(context.Background(), "36-67")
	if err != nil {
		t.Fatalf("fetch list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if got := records[0][models.FieldName]; got != "Pine Valley High" {
		t.Fatalf("name = %q", got)
	}
}

func TestFetchProjectListCompositeIDRequiresBothParams(t *testing.T) {
	s, transport := newTestScraper(t)

	page := buildListPage(
		`<tr><td><a href="ApplicationSummary.aspx?AppId=1001">1001</a></td><td></td><td>No Origin</td></tr>`,
	)
	transport.RegisterResponder("GET",
		"http://example.test/ProjectList.aspx?ClientId=36-67",
		htmlResponder(page))

	records, err := s.FetchProjectList(context.Background(), "36-67")
	if err != nil {
		t.Fatalf("fetch list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if got := records[0][models.FieldAppID]; got != "" {
		t.Fatalf("app id = %q, want empty when OriginId is missing", got)
	}
}
