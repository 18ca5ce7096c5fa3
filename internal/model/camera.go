package model

// Camera is one configured network camera. ID is unique within a process.
type Camera struct {
	ID  string `json:"id"`
	URL string `json:"stream_url"`
}
