// Package scraper drives the list, detail, and certification fetch pipeline
// against the DSA project tracker.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/mmpvdesign/dsa-scrape/config"
	"github.com/mmpvdesign/dsa-scrape/models"
)

// Scraper owns one scraping session: a single shared HTTP client and its
// statistics, consumed by strictly sequential fetches. A new Scraper is
// built per run; nothing is shared across runs except output files.
type Scraper struct {
	cfg     *config.Config
	client  *Client
	Metrics *Metrics

	baseURL string
	base    *url.URL
}

// New builds a scraper session from cfg.
func New(cfg *config.Config) (*Scraper, error) {
	baseURL := cfg.BaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	metrics := NewMetrics()
	client, err := NewClient(cfg, metrics)
	if err != nil {
		return nil, err
	}

	return &Scraper{
		cfg:     cfg,
		client:  client,
		Metrics: metrics,
		baseURL: baseURL,
		base:    base,
	}, nil
}

// Client exposes the session HTTP client, mainly for tests.
func (s *Scraper) Client() *Client {
	return s.client
}

// Run scrapes every given district sequentially and aggregates basic and
// detailed records. A district that fails outright is logged and skipped;
// the run continues with the next one. Only context cancellation aborts the
// whole run.
func (s *Scraper) Run(ctx context.Context, clientIDs []string) (*models.ScrapeResult, error) {
	result := &models.ScrapeResult{
		StartTime:    time.Now(),
		ErrorsByType: make(map[string]int),
	}

	for i, clientID := range clientIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		slog.Info("processing district",
			slog.String("client_id", clientID),
			slog.Int("index", i+1),
			slog.Int("total", len(clientIDs)),
		)

		basics, detailed, err := s.scrapeDistrict(ctx, clientID, result)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return result, err
			}
			slog.Error("district failed",
				slog.String("client_id", clientID),
				slog.Any("error", err),
			)
			result.ErrorsByType[errorTypeLabel(err)]++
			continue
		}

		result.Projects = append(result.Projects, basics...)
		result.DetailedProjects = append(result.DetailedProjects, detailed...)
		result.Districts++
	}

	result.EndTime = time.Now()
	result.Stats = s.client.Stats()
	result.RetryCount = s.client.Retries()
	return result, nil
}

// scrapeDistrict fetches the list for one district and, unless basic-only
// mode is on, each project's details in list order. Detail failures are
// isolated per record: the partially-filled list record is kept and
// processing continues.
func (s *Scraper) scrapeDistrict(ctx context.Context, clientID string, result *models.ScrapeResult) ([]models.ProjectRecord, []models.ProjectRecord, error) {
	records, err := s.FetchProjectList(ctx, clientID)
	if err != nil {
		return nil, nil, err
	}

	if !s.cfg.Detailed {
		return records, nil, nil
	}

	var basics, detailed []models.ProjectRecord
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return basics, detailed, err
		}

		basic, full, err := s.FetchProjectDetails(ctx, record.Link())
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return basics, detailed, err
			}
			slog.Error("detail fetch failed",
				slog.String("link", record.Link()),
				slog.Any("error", err),
			)
			result.ErrorsByType[errorTypeLabel(err)]++
			result.FailedLinks = append(result.FailedLinks, record.Link())
			basics = append(basics, record)
			continue
		}

		merged := record.Clone()
		for key, value := range basic {
			merged[key] = value
		}
		basics = append(basics, merged)

		fullRecord := merged.Clone()
		for key, value := range full {
			fullRecord[key] = value
		}
		detailed = append(detailed, fullRecord)

		s.Metrics.IncRecords()
	}

	return basics, detailed, nil
}
