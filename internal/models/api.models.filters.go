// FilePath: internal/models/api.models.filters.go
package models

import "time"

// ReadingFilters defines the available filter options for listing readings.
// Decoded from query strings via gorilla/schema.
type ReadingFilters struct {
	CrossingID string     `schema:"crossing_id"`
	Start      *time.Time `schema:"start"`
	End        *time.Time `schema:"end"`
	Limit      int        `schema:"limit"`
	Offset     int        `schema:"offset"`
}

// AlertFilters defines the available filter options for listing alerts.
type AlertFilters struct {
	CrossingID string `schema:"crossing_id"`
	Type       string `schema:"type"`
	Severity   string `schema:"severity"`
	OpenOnly   bool   `schema:"open"`
	Limit      int    `schema:"limit"`
	Offset     int    `schema:"offset"`
}
