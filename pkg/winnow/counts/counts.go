// Package counts projects the scalar dataset statistics consumed by display
// layers and by sample generation.
package counts

import "github.com/cognicore/winnow/pkg/winnow/aggregate"

// DatasetCounts summarizes a flagged vocabulary table: the pre-filter totals
// and their remaining-after-filtering counterparts.
type DatasetCounts struct {
	TotalDocs         int
	TotalTokens       int
	TotalUniqueTokens int

	TotalDocsRemaining         int
	TotalTokensRemaining       int
	TotalUniqueTokensRemaining int
}

// Project derives DatasetCounts from an aggregated table. Document totals are
// unions of the rows' document keys, not group counts: a document survives
// filtering as long as at least one non-excluded group still touches it.
func Project(t aggregate.Table) DatasetCounts {
	var c DatasetCounts
	allDocs := make(map[string]struct{})
	remainingDocs := make(map[string]struct{})

	for _, row := range t.Rows {
		c.TotalUniqueTokens++
		c.TotalTokens += row.WordCount
		for doc := range row.DocumentKeys() {
			allDocs[doc] = struct{}{}
		}
		if row.Excluded {
			continue
		}
		c.TotalUniqueTokensRemaining++
		c.TotalTokensRemaining += row.WordCount
		for doc := range row.DocumentKeys() {
			remainingDocs[doc] = struct{}{}
		}
	}

	c.TotalDocs = len(allDocs)
	c.TotalDocsRemaining = len(remainingDocs)
	return c
}
