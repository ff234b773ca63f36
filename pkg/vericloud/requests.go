package vericloud

// UploadRequest contains parameters for storing a new file.
type UploadRequest struct {
	FileName    string
	Data        []byte
	ContentType string
}

// UpdateRequest contains parameters for replacing the content of an
// existing file. The identifier and original filename are immutable; only
// content and derived fields change.
type UpdateRequest struct {
	ID          string
	Data        []byte
	ContentType string
}

// BatchFailure records a single failed item of a batch upload.
type BatchFailure struct {
	FileName string `json:"filename"`
	Err      error  `json:"-"`
	Reason   string `json:"error"`
}

// BatchResult is the outcome of a batch upload. Partial success is a normal
// result shape, not an error: callers must inspect Failed.
type BatchResult struct {
	Succeeded []*FileMetadata `json:"data"`
	Failed    []BatchFailure  `json:"errors"`
}
