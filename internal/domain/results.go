package domain

// ScanResult summarizes one scan pass over an instance. It is returned for
// observability; a non-empty Error means the scan was cut short but the
// instance was still rescheduled.
type ScanResult struct {
	InstanceID                string `json:"instance_id"`
	InstanceName              string `json:"instance_name"`
	DocumentsQueued           int    `json:"documents_queued"`
	DocumentsAlreadyProcessed int    `json:"documents_already_processed"`
	DocumentsAlreadyQueued    int    `json:"documents_already_queued"`
	Error                     string `json:"error,omitempty"`
}

// ProcessResult summarizes the handling of one queue entry.
type ProcessResult struct {
	EntryID    string `json:"entry_id"`
	DocumentID string `json:"document_id,omitempty"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// QueueStats holds per-status entry counts. The counts are gathered as
// independent queries, not one snapshot.
type QueueStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}
