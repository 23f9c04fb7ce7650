// Package models defines data structures for the scraper.
package models

import "time"

// Canonical field names shared by the list parser, detail fetcher, and exporter.
const (
	FieldLink     = "Link"
	FieldAppID    = "DSA AppId"
	FieldPTN      = "PTN"
	FieldName     = "Project Name"
	FieldScope    = "Project Scope"
	FieldCertType = "Project Cert Type"
)

// ProjectRecord is a flat field-name to value mapping for one project.
// Only Link is guaranteed non-empty; every other field is best effort and
// may be absent entirely. Two records describe the same project when their
// links match.
type ProjectRecord map[string]string

// Link returns the detail-page URL for the record.
func (r ProjectRecord) Link() string {
	return r[FieldLink]
}

// Clone returns an independent copy of the record.
func (r ProjectRecord) Clone() ProjectRecord {
	out := make(ProjectRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// MergeKey is the join key used when merging basic and detailed records.
type MergeKey struct {
	Link     string
	AppID    string
	Name     string
	Scope    string
	CertType string
}

// Key derives the merge key from a record.
func (r ProjectRecord) Key() MergeKey {
	return MergeKey{
		Link:     r[FieldLink],
		AppID:    r[FieldAppID],
		Name:     r[FieldName],
		Scope:    r[FieldScope],
		CertType: r[FieldCertType],
	}
}

// RequestStats counts HTTP activity for one scraper session.
type RequestStats struct {
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	StartTime          time.Time
}

// Elapsed reports time since the session started.
func (s RequestStats) Elapsed() time.Duration {
	if s.StartTime.IsZero() {
		return 0
	}
	return time.Since(s.StartTime)
}

// ScrapeResult holds the overall result of a scraping run.
type ScrapeResult struct {
	Projects         []ProjectRecord
	DetailedProjects []ProjectRecord
	Stats            RequestStats
	StartTime        time.Time
	EndTime          time.Time
	Districts        int
	RetryCount       int
	ErrorsByType     map[string]int
	FailedLinks      []string
}

// District is one row of the california_districts catalog.
type District struct {
	CountyCode   string `csv:"CountyCode" json:"county_code"`
	CountyName   string `csv:"CountyName" json:"county_name"`
	DistrictCode string `csv:"DistrictCode" json:"district_code"`
	DistrictName string `csv:"DistrictName" json:"district_name"`
}

// ClientID returns the tracker client identifier for the district, the
// "{county}-{district}" form the ClientId query parameter expects.
func (d District) ClientID() string {
	if d.CountyCode == "" || d.DistrictCode == "" {
		return ""
	}
	return d.CountyCode + "-" + d.DistrictCode
}
