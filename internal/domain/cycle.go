package domain

import "time"

// CycleStats holds statistics about a single publishing cycle.
type CycleStats struct {
	Fetched    int
	Invalid    int
	Duplicates int
	Failed     int
	Published  int
	Trimmed    int
	Duration   time.Duration
}
