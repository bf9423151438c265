package domain

// QueryRequest is the backend-specific request shape handed to a data
// source. Connection is the target address (cluster URL, org URL, file
// path — whatever the backend dials); Database narrows it further where
// the backend has that notion.
type QueryRequest struct {
	Query      string `json:"query"`
	SourceType string `json:"sourceType,omitempty"` // explicit backend hint, may be empty
	Connection string `json:"connection,omitempty"`
	Database   string `json:"database,omitempty"`
	Limit      int    `json:"limit,omitempty"`      // 0 means "use the backend default"
	TimeoutSec int    `json:"timeoutSec,omitempty"` // 0 means no per-request timeout
}

// DataSourceDescriptor is the display-level view of a registered backend,
// exposed to UIs and API clients without handing them the instance.
type DataSourceDescriptor struct {
	ID            string `json:"id"`
	DisplayName   string `json:"displayName"`
	Icon          string `json:"icon"`
	QueryLanguage string `json:"queryLanguage"`
	SortOrder     int    `json:"sortOrder"`
	Enabled       bool   `json:"enabled"`
}
