package districts

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mmpvdesign/dsa-scrape/models"
	"github.com/mmpvdesign/dsa-scrape/parser"
	"github.com/mmpvdesign/dsa-scrape/scraper"
)

const countyPage = "CountySchoolProjects.aspx"

// CountyNames maps tracker county codes to California county names. The
// codes follow the state's alphabetical numbering, which is what the
// County query parameter expects.
var CountyNames = map[string]string{
	"1": "Alameda", "2": "Alpine", "3": "Amador", "4": "Butte",
	"5": "Calaveras", "6": "Colusa", "7": "Contra Costa", "8": "Del Norte",
	"9": "El Dorado", "10": "Fresno", "11": "Glenn", "12": "Humboldt",
	"13": "Imperial", "14": "Inyo", "15": "Kern", "16": "Kings",
	"17": "Lake", "18": "Lassen", "19": "Los Angeles", "20": "Madera",
	"21": "Marin", "22": "Mariposa", "23": "Mendocino", "24": "Merced",
	"25": "Modoc", "26": "Mono", "27": "Monterey", "28": "Napa",
	"29": "Nevada", "30": "Orange", "31": "Placer", "32": "Plumas",
	"33": "Riverside", "34": "Sacramento", "35": "San Benito",
	"36": "San Bernardino", "37": "San Diego", "38": "San Francisco",
	"39": "San Joaquin", "40": "San Luis Obispo", "41": "San Mateo",
	"42": "Santa Barbara", "43": "Santa Clara", "44": "Santa Cruz",
	"45": "Shasta", "46": "Sierra", "47": "Siskiyou", "48": "Solano",
	"49": "Sonoma", "50": "Stanislaus", "51": "Sutter", "52": "Tehama",
	"53": "Trinity", "54": "Tulare", "55": "Tuolumne", "56": "Ventura",
	"57": "Yolo", "58": "Yuba",
}

// Discoverer enumerates school districts by crawling the per-county
// project listing pages. Each page carries a table whose rows hold the
// district code and name; the crawl is bounded by a parallelism limit
// and a visited-URL cache so repeated runs against the same collector
// never refetch a county.
type Discoverer struct {
	baseURL   string
	collector *colly.Collector
	visited   *lru.Cache[string, struct{}]

	mu    sync.Mutex
	found []models.District
}

// DiscoverOptions tunes the crawl. Zero values fall back to a polite
// single-connection crawl with the shared user agent pool.
type DiscoverOptions struct {
	Parallelism int
	Delay       time.Duration
	UserAgent   string
}

// NewDiscoverer builds a Discoverer rooted at baseURL, which must point
// at the tracker application root.
func NewDiscoverer(baseURL string, opts DiscoverOptions) (*Discoverer, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	if opts.UserAgent == "" {
		opts.UserAgent = scraper.RandomUserAgent()
	}

	collector := colly.NewCollector(
		colly.Async(true),
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(opts.UserAgent),
	)
	collector.SetRequestTimeout(30 * time.Second)
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: opts.Parallelism,
		Delay:       opts.Delay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limit: %w", err)
	}

	visited, err := lru.New[string, struct{}](256)
	if err != nil {
		return nil, fmt.Errorf("create visited cache: %w", err)
	}

	d := &Discoverer{
		baseURL:   baseURL,
		collector: collector,
		visited:   visited,
	}

	collector.OnHTML("table tr", func(e *colly.HTMLElement) {
		cells := e.DOM.Find("td")
		if cells.Length() < 3 {
			return
		}
		code := parser.CleanText(cells.Eq(1).Text())
		name := parser.CleanText(cells.Eq(2).Text())
		if code == "" || name == "" {
			return
		}
		countyCode := e.Request.URL.Query().Get("County")
		d.mu.Lock()
		d.found = append(d.found, models.District{
			CountyCode:   countyCode,
			CountyName:   CountyNames[countyCode],
			DistrictCode: code,
			DistrictName: name,
		})
		d.mu.Unlock()
	})

	collector.OnError(func(r *colly.Response, err error) {
		slog.Warn("county page fetch failed",
			"url", r.Request.URL.String(),
			"status", r.StatusCode,
			"error", err)
	})

	return d, nil
}

// Discover crawls every known county page and returns the districts
// found, sorted by county then district code. The context only gates
// enqueueing: pages already in flight when ctx is cancelled still
// finish.
func (d *Discoverer) Discover(ctx context.Context) ([]models.District, error) {
	for code := range CountyNames {
		if err := ctx.Err(); err != nil {
			d.collector.Wait()
			return d.snapshot(), err
		}
		pageURL := fmt.Sprintf("%s%s?County=%s", d.baseURL, countyPage, code)
		if ok, _ := d.visited.ContainsOrAdd(pageURL, struct{}{}); ok {
			continue
		}
		if err := d.collector.Visit(pageURL); err != nil {
			slog.Warn("skipping county page", "url", pageURL, "error", err)
		}
	}
	d.collector.Wait()

	districts := d.snapshot()
	if len(districts) == 0 {
		return nil, fmt.Errorf("no districts found under %s", d.baseURL)
	}
	return districts, nil
}

func (d *Discoverer) snapshot() []models.District {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.District, len(d.found))
	copy(out, d.found)
	sort.Slice(out, func(i, j int) bool {
		if out[i].CountyCode != out[j].CountyCode {
			return out[i].CountyCode < out[j].CountyCode
		}
		return out[i].DistrictCode < out[j].DistrictCode
	})
	return out
}
