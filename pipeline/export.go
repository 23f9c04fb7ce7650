package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmpvdesign/dsa-scrape/models"
)

// ExportOptions controls one export.
type ExportOptions struct {
	Dir       string
	Format    string // csv, json, or dual
	Detailed  bool
	ClientIDs []string
	Now       time.Time
}

// Export merges the run's basic and detailed records, writes them in the
// requested format, and returns the path of the primary output file. Writes
// go straight to the final path; a crash mid-write leaves a truncated file.
func Export(result *models.ScrapeResult, opts ExportOptions) (string, error) {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	merged := Merge(result.Projects, result.DetailedProjects)
	if len(merged) == 0 {
		return "", fmt.Errorf("no records to export")
	}

	var (
		writer  OutputWriter
		primary string
		err     error
	)
	switch opts.Format {
	case "json":
		primary = OutputFilename(opts.Dir, opts.ClientIDs, "json", opts.Now)
		writer, err = NewJSONWriter(primary, opts.Detailed)
	case "dual":
		primary = OutputFilename(opts.Dir, opts.ClientIDs, "csv", opts.Now)
		jsonName := strings.TrimSuffix(primary, ".csv") + ".json"
		writer, err = NewDualWriter(primary, jsonName, opts.Detailed)
	case "csv", "":
		primary = OutputFilename(opts.Dir, opts.ClientIDs, "csv", opts.Now)
		writer, err = NewCSVWriter(primary, opts.Detailed)
	default:
		return "", fmt.Errorf("unsupported format: %s", opts.Format)
	}
	if err != nil {
		return "", err
	}

	if err := writer.Write(merged); err != nil {
		writer.Close()
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}
	if err := writer.Validate(); err != nil {
		return "", err
	}
	return primary, nil
}
