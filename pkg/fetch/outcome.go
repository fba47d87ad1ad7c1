package fetch

import "github.com/humbldata/humbldata-go/pkg/table"

// Warning is a non-fatal notice returned alongside upstream results.
type Warning struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// FetchOutcome is the result of a single fetch operation. Data is lazy when
// it was freshly parsed or decoded from a lazy cache entry.
type FetchOutcome struct {
	Data     *table.LazyResult
	Provider string
	Warnings []Warning
	Extra    map[string]any
}
