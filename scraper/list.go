package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmpvdesign/dsa-scrape/models"
	"github.com/mmpvdesign/dsa-scrape/parser"
)

const (
	// projectTableSelector identifies the project grid on the list page.
	projectTableSelector = "table#ctl00_MainContent_gdvsch"
	// detailPageMarker identifies anchors that lead to a detail page.
	detailPageMarker = "ApplicationSummary.aspx"
)

// FetchProjectList retrieves the project list for one district client id and
// returns partially-filled records in page order. A missing project table is
// not an error: it means the district has no data, and an empty slice comes
// back.
func (s *Scraper) FetchProjectList(ctx context.Context, clientID string) ([]models.ProjectRecord, error) {
	listURL := fmt.Sprintf("%sProjectList.aspx?ClientId=%s", s.baseURL, url.QueryEscape(clientID))

	resp, err := s.client.Get(ctx, listURL)
	if err != nil {
		return nil, fmt.Errorf("fetch project list for %s: %w", clientID, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse project list for %s: %w", clientID, err)
	}

	table := doc.Find(projectTableSelector)
	if table.Length() == 0 {
		slog.Warn("project table not found", slog.String("client_id", clientID))
		return nil, nil
	}

	var records []models.ProjectRecord
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			// header row
			return
		}
		record, ok := s.parseListRow(row)
		if !ok {
			slog.Debug("skipping list row without a detail link",
				slog.String("client_id", clientID),
				slog.Int("row", i),
			)
			return
		}
		records = append(records, record)
	})

	slog.Info("project list fetched",
		slog.String("client_id", clientID),
		slog.Int("projects", len(records)),
	)
	return records, nil
}

// parseListRow extracts the detail link and inline fields from one data row.
// Rows with fewer than three cells or without an ApplicationSummary anchor
// are skipped.
func (s *Scraper) parseListRow(row *goquery.Selection) (models.ProjectRecord, bool) {
	cells := row.Find("td")
	if cells.Length() < 3 {
		return nil, false
	}

	var href string
	row.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		h, ok := a.Attr("href")
		if ok && strings.Contains(h, detailPageMarker) {
			href = h
			return false
		}
		return true
	})
	if href == "" {
		return nil, false
	}

	ref, err := url.Parse(href)
	if err != nil {
		slog.Warn("unparseable detail href", slog.String("href", href), slog.Any("error", err))
		return nil, false
	}
	link := s.base.ResolveReference(ref)

	query := link.Query()
	originID := query.Get("OriginId")
	appID := query.Get("AppId")
	composite := ""
	if originID != "" && appID != "" {
		composite = originID + " " + appID
	}

	return models.ProjectRecord{
		models.FieldLink:     link.String(),
		models.FieldAppID:    composite,
		models.FieldPTN:      "",
		models.FieldName:     parser.CleanText(cells.Eq(2).Text()),
		models.FieldScope:    "",
		models.FieldCertType: "",
	}, true
}
