package models

// ProgressEvent is one best-effort progress update emitted while an ingest
// run is processing. Percent never regresses within a run and the terminal
// event of a successful run is exactly 100.
type ProgressEvent struct {
	Phase     string `json:"phase"`
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
	Percent   int    `json:"percent"`
	Message   string `json:"message"`
}
