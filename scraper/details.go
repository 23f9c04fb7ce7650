package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmpvdesign/dsa-scrape/models"
	"github.com/mmpvdesign/dsa-scrape/parser"
)

// closeoutPage is the certification page path, reached with the same
// OriginId/AppId parameters as the detail page.
const closeoutPage = "ProjectCloseout.aspx"

// FetchProjectDetails fetches the application summary page for one detail
// link and returns a basic field set and a full one. The full set carries
// the complete label mapping plus indicator flags; both carry the
// certification type from the closeout page, which degrades to empty string
// when that sub-fetch fails.
func (s *Scraper) FetchProjectDetails(ctx context.Context, link string) (models.ProjectRecord, models.ProjectRecord, error) {
	resp, err := s.client.Get(ctx, link)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch detail page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, nil, fmt.Errorf("parse detail page: %w", err)
	}

	basic := models.ProjectRecord{}
	detailed := models.ProjectRecord{}

	if value, ok := parser.LabelValue(doc, parser.LabelPTN); ok && value != "" {
		basic[models.FieldPTN] = value
		detailed[models.FieldPTN] = value
	}
	if value, ok := parser.LabelValue(doc, parser.LabelName); ok && value != "" {
		basic[models.FieldName] = value
		detailed[models.FieldName] = value
	}

	// Scope is always present in the result, empty when the label is absent.
	scope, _ := parser.LabelValue(doc, parser.LabelScope)
	basic[models.FieldScope] = scope
	detailed[models.FieldScope] = scope

	certType := s.fetchCertification(ctx, link)
	basic[models.FieldCertType] = certType
	detailed[models.FieldCertType] = certType

	for key, value := range parser.Extract(doc, parser.DetailFieldMappings) {
		detailed[key] = value
	}
	for key, value := range parser.ExtractIndicators(doc, parser.IndicatorFields) {
		detailed[key] = value
	}

	return basic, detailed, nil
}

// fetchCertification derives the closeout-page URL from the detail link's
// OriginId/AppId parameters and extracts the certification type. Every
// failure here is soft: it is logged and yields an empty string rather than
// failing the record.
func (s *Scraper) fetchCertification(ctx context.Context, detailLink string) string {
	parsed, err := url.Parse(detailLink)
	if err != nil {
		slog.Error("unparseable detail link", slog.String("link", detailLink), slog.Any("error", err))
		return ""
	}

	query := parsed.Query()
	originID := query.Get("OriginId")
	appID := query.Get("AppId")
	if originID == "" || appID == "" {
		return ""
	}

	certURL := fmt.Sprintf("%s%s?OriginId=%s&AppId=%s",
		s.baseURL, closeoutPage, url.QueryEscape(originID), url.QueryEscape(appID))

	resp, err := s.client.Get(ctx, certURL)
	if err != nil {
		slog.Error("fetch certification page", slog.String("url", certURL), slog.Any("error", err))
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		slog.Error("parse certification page", slog.String("url", certURL), slog.Any("error", err))
		return ""
	}

	return parser.Certification(doc)
}
