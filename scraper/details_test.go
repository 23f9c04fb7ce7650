package scraper

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/mmpvdesign/dsa-scrape/models"
)

const detailPage = `
<html><body>
<table>
	<tr><td>Office ID:</td><td>04</td></tr>
	<tr><td>Application #:</td><td>04-119371</td></tr>
	<tr><td>PTN #:</td><td>61-116</td></tr>
	<tr><td>Project Name:</td><td>Gymnasium Addition</td></tr>
	<tr><td>Project Scope:</td><td>New gym and locker rooms</td></tr>
	<tr><td>City:</td><td>Fresno</td></tr>
	<tr><td>Estimated Amt:</td><td>$4,500,000</td></tr>
	<tr><td>Received Date:</td><td>01/15/2018</td></tr>
	<tr>
		<td><input type="checkbox" checked disabled></td><td>Modernization</td>
		<td><input type="checkbox" disabled></td><td>New Campus</td>
	</tr>
</table>
</body></html>`

const closeoutPageBody = `
<html><body>
<table>
	<tr><td>Last Certification Letter Type:</td><td>#1-Certification &amp; Close of File</td></tr>
</table>
</body></html>`

func TestFetchProjectDetails(t *testing.T) {
	s, transport := newTestScraper(t)

	link := "http://example.test/ApplicationSummary.aspx?OriginId=04&AppId=1001"
	transport.RegisterResponder("GET", link, htmlResponder(detailPage))
	transport.RegisterResponder("GET",
		"http://example.test/ProjectCloseout.aspx?OriginId=04&AppId=1001",
		htmlResponder(closeoutPageBody))

	basic, detailed, err := s.FetchProjectDetails(context.Background(), link)
	if err != nil {
		t.Fatalf("fetch details: %v", err)
	}

	if got := basic[models.FieldPTN]; got != "61-116" {
		t.Fatalf("basic PTN = %q", got)
	}
	if got := basic[models.FieldName]; got != "Gymnasium Addition" {
		t.Fatalf("basic name = %q", got)
	}
	if got := basic[models.FieldScope]; got != "New gym and locker rooms" {
		t.Fatalf("basic scope = %q", got)
	}
	if got := basic[models.FieldCertType]; got != "#1-Certification & Close of File" {
		t.Fatalf("basic cert type = %q", got)
	}

	if got := detailed["Office ID"]; got != "04" {
		t.Fatalf("Office ID = %q", got)
	}
	if got := detailed["Estimated Amount"]; got != "$4,500,000" {
		t.Fatalf("Estimated Amount = %q", got)
	}
	if got := detailed["Modernization"]; got != "Yes" {
		t.Fatalf("Modernization = %q, want Yes", got)
	}
	if got := detailed["New Campus"]; got != "No" {
		t.Fatalf("New Campus = %q, want No", got)
	}
	if _, ok := detailed["HPS"]; ok {
		t.Fatalf("HPS has no label cell and must be absent")
	}
	if _, ok := detailed["Zip"]; ok {
		t.Fatalf("Zip has no label cell and must be absent")
	}
}

func TestFetchProjectDetailsMissingScope(t *testing.T) {
	s, transport := newTestScraper(t)

	link := "http://example.test/ApplicationSummary.aspx?OriginId=04&AppId=1002"
	transport.RegisterResponder("GET", link, htmlResponder(`
		<html><body><table>
			<tr><td>PTN #:</td><td>61-117</td></tr>
			<tr><td>Project Name:</td><td>Roof Replacement</td></tr>
		</table></body></html>`))
	transport.RegisterResponder("GET",
		"http://example.test/ProjectCloseout.aspx?OriginId=04&AppId=1002",
		htmlResponder(`<html><body><p>No closeout data</p></body></html>`))

	basic, detailed, err := s.FetchProjectDetails(context.Background(), link)
	if err != nil {
		t.Fatalf("fetch details: %v", err)
	}

	if value, ok := basic[models.FieldScope]; !ok || value != "" {
		t.Fatalf("scope = %q (present %v), want present and empty", value, ok)
	}
	if got := basic[models.FieldCertType]; got != "" {
		t.Fatalf("cert type = %q, want empty when closeout has nothing", got)
	}
	if got := detailed[models.FieldPTN]; got != "61-117" {
		t.Fatalf("detailed PTN = %q", got)
	}
}

func TestFetchProjectDetailsCertificationSoftFailure(t *testing.T) {
	s, transport := newTestScraper(t)

	link := "http://example.test/ApplicationSummary.aspx?OriginId=04&AppId=1003"
	transport.RegisterResponder("GET", link, htmlResponder(`
		<html><body><table>
			<tr><td>Project Name:</td><td>Cafeteria Upgrade</td></tr>
		</table></body></html>`))
	transport.RegisterResponder("GET",
		"http://example.test/ProjectCloseout.aspx?OriginId=04&AppId=1003",
		httpmock.NewStringResponder(http.StatusInternalServerError, ""))

	basic, _, err := s.FetchProjectDetails(context.Background(), link)
	if err != nil {
		t.Fatalf("a failed closeout fetch must not fail the record: %v", err)
	}
	if got := basic[models.FieldCertType]; got != "" {
		t.Fatalf("cert type = %q, want empty on closeout failure", got)
	}
	if got := basic[models.FieldName]; got != "Cafeteria Upgrade" {
		t.Fatalf("name = %q", got)
	}
}

func TestFetchProjectDetailsSkipsCloseoutWithoutParams(t *testing.T) {
	s, transport := newTestScraper(t)

	link := "http://example.test/ApplicationSummary.aspx?Ref=abc"
	transport.RegisterResponder("GET", link, htmlResponder(`
		<html><body><table>
			<tr><td>Project Name:</td><td>Library Annex</td></tr>
		</table></body></html>`))

	basic, _, err := s.FetchProjectDetails(context.Background(), link)
	if err != nil {
		t.Fatalf("fetch details: %v", err)
	}
	if got := basic[models.FieldCertType]; got != "" {
		t.Fatalf("cert type = %q, want empty without OriginId/AppId", got)
	}
	if calls := transport.GetCallCountInfo(); len(calls) != 1 {
		t.Fatalf("unexpected extra requests: %v", calls)
	}
}
