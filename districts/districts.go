// Package districts loads and discovers the California school district
// catalog used to pick tracker client ids.
package districts

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/mmpvdesign/dsa-scrape/models"
)

// CatalogGlob matches catalog files produced by the discovery crawler.
const CatalogGlob = "california_districts_*.csv"

// ErrNoCatalog is returned when no catalog file exists yet.
var ErrNoCatalog = fmt.Errorf("no district catalog found")

// LoadLatest finds the most recently modified catalog file in dir and
// decodes it.
func LoadLatest(dir string) ([]models.District, error) {
	matches, err := filepath.Glob(filepath.Join(dir, CatalogGlob))
	if err != nil {
		return nil, fmt.Errorf("glob district catalog: %w", err)
	}
	if len(matches) == 0 {
		return nil, ErrNoCatalog
	}

	newest := matches[0]
	newestTime := time.Time{}
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			continue
		}
		if info.ModTime().After(newestTime) {
			newest = match
			newestTime = info.ModTime()
		}
	}

	return Load(newest)
}

// Load decodes one catalog file.
func Load(path string) ([]models.District, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open district catalog: %w", err)
	}
	defer f.Close()

	decoder, err := csvutil.NewDecoder(csv.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("read district catalog header: %w", err)
	}

	var districts []models.District
	if err := decoder.Decode(&districts); err != nil {
		return nil, fmt.Errorf("decode district catalog %s: %w", path, err)
	}
	return districts, nil
}

// WriteCatalog writes districts to a timestamped catalog file in dir and
// returns its path.
func WriteCatalog(dir string, districts []models.District, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create catalog directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("california_districts_%s.csv", now.Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create district catalog: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	encoder := csvutil.NewEncoder(writer)
	for _, d := range districts {
		if err := encoder.Encode(d); err != nil {
			return "", fmt.Errorf("encode district: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("flush district catalog: %w", err)
	}
	return path, nil
}

// ByCounty groups districts by county code, each group sorted by name.
func ByCounty(districts []models.District) map[string][]models.District {
	grouped := make(map[string][]models.District)
	for _, d := range districts {
		grouped[d.CountyCode] = append(grouped[d.CountyCode], d)
	}
	for code := range grouped {
		group := grouped[code]
		sort.Slice(group, func(i, j int) bool {
			return group[i].DistrictName < group[j].DistrictName
		})
	}
	return grouped
}
