package domain

import "time"

// RecordStats aggregates persisted records.
type RecordStats struct {
	Total       int            `json:"total"`
	ByFormat    map[string]int `json:"byFormat"`
	ByProcessor map[string]int `json:"byProcessor"`
}

// ErrorStats aggregates persisted error logs.
type ErrorStats struct {
	Total    int            `json:"total"`
	ByType   map[string]int `json:"byType"`
	ByStatus map[string]int `json:"byStatus"`
}

// FileSummary describes one processed upload.
type FileSummary struct {
	UploadID     string    `json:"uploadId"`
	FileName     string    `json:"fileName"`
	SourceFormat string    `json:"sourceFormat"`
	ProcessedBy  string    `json:"processedBy"`
	RecordCount  int       `json:"recordCount"`
	ErrorCount   int       `json:"errorCount"`
	ProcessedAt  time.Time `json:"processedAt"`
}
