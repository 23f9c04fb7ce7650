// Package pipeline merges scraped records and writes them to output files.
package pipeline

import "github.com/mmpvdesign/dsa-scrape/models"

// Merge outer-joins basic and detailed records on (Link, DSA AppId, Project
// Name, Project Scope, Project Cert Type). Rows matching on the key collapse
// into one with fields from both sides; rows present on only one side are
// preserved as-is, the other side's fields left empty. First-seen order is
// kept, so output rows follow list-page order.
func Merge(basic, detailed []models.ProjectRecord) []models.ProjectRecord {
	merged := make(map[models.MergeKey]models.ProjectRecord)
	var order []models.MergeKey

	absorb := func(records []models.ProjectRecord) {
		for _, record := range records {
			key := record.Key()
			existing, ok := merged[key]
			if !ok {
				merged[key] = record.Clone()
				order = append(order, key)
				continue
			}
			for field, value := range record {
				if existing[field] == "" {
					existing[field] = value
				}
			}
		}
	}
	absorb(basic)
	absorb(detailed)

	out := make([]models.ProjectRecord, 0, len(order))
	for _, key := range order {
		out = append(out, merged[key])
	}
	return out
}
