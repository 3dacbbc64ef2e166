package api

import "time"

// Bundle describes a stored bundle in a transport-friendly format.
type Bundle struct {
	ID         string            `json:"id"`
	Uploaded   time.Time         `json:"uploaded"`
	Reviewed   *time.Time        `json:"reviewed,omitempty"`
	Tags       []string          `json:"tags"`
	Properties map[string]string `json:"properties"`
	Revision   int64             `json:"revision"`
	Fragments  []string          `json:"fragments,omitempty"`
}

// BundleResponse wraps a single bundle.
type BundleResponse struct {
	Bundle Bundle `json:"bundle"`
}

// BundleListResponse wraps a collection of bundles.
type BundleListResponse struct {
	Bundles []Bundle `json:"bundles"`
}

// ManifestPatch describes a partial manifest update. Zero-valued fields are
// left untouched.
type ManifestPatch struct {
	AddTags       []string          `json:"addTags,omitempty"`
	RemoveTags    []string          `json:"removeTags,omitempty"`
	SetProperties map[string]string `json:"setProperties,omitempty"`
	MarkReviewed  bool              `json:"markReviewed,omitempty"`
}

// SearchResponse wraps catalog search results.
type SearchResponse struct {
	Results []Bundle `json:"results"`
}

// RequeueResponse reports how many stages were revived for a bundle.
type RequeueResponse struct {
	ID      string `json:"id"`
	Revived int    `json:"revived"`
}

// StageHealth summarizes one pipeline stage's queue.
type StageHealth struct {
	Name         string `json:"name"`
	Pending      int    `json:"pending"`
	DeadLettered int    `json:"dead_lettered"`
}

// CheckResult reports one preflight check in API form.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool          `json:"running"`
	PID          int           `json:"pid"`
	StorageDir   string        `json:"storageDir"`
	IndexPath    string        `json:"indexPath"`
	LockFilePath string        `json:"lockFilePath"`
	Documents    int           `json:"documents"`
	Stages       []StageHealth `json:"stages"`
	Checks       []CheckResult `json:"checks"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
