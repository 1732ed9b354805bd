package uploads

import "findoc-gateway/internal/cache"

type fileResponse struct {
	ID         string `json:"id"`
	StoredAs   string `json:"stored_as,omitempty"`
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	SizeLabel  string `json:"sizeLabel"`
	Type       string `json:"type"`
	UploadedAt string `json:"uploadedAt"`
	Company    string `json:"company,omitempty"`
	Pinned     bool   `json:"pinned"`
}

type filesResponse struct {
	Files  []fileResponse `json:"files"`
	Source string         `json:"source"`
}

type uploadResponse struct {
	cache.UploadView
	Cached bool `json:"cached"`
}

type pinResponse struct {
	Pinned []string `json:"pinned"`
}
