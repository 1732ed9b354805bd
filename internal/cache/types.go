package cache

import (
	"time"

	"findoc-gateway/internal/kpi"
)

// FileInfo describes an uploaded document in the durable fallback file list.
type FileInfo struct {
	ID         string    `json:"id"`
	StoredAs   string    `json:"stored_as,omitempty"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Type       string    `json:"type"`
	UploadedAt time.Time `json:"uploadedAt"`
	Company    string    `json:"company,omitempty"`
}

// Upload is the input of RecordUpload: the raw results of the upload and
// analysis calls for one document.
type Upload struct {
	DocumentID  string
	Result      map[string]any
	Analysis    map[string]any
	CompanyName string
	File        FileInfo
}

// UploadView is what the upload view renders for the latest upload.
type UploadView struct {
	Upload   map[string]any       `json:"upload"`
	File     FileInfo             `json:"file"`
	Analysis kpi.DocumentAnalysis `json:"analysis"`
}

// CacheEntry is the per-document session record written by RecordUpload.
type CacheEntry struct {
	DocumentID  string               `json:"documentId"`
	Analysis    kpi.DocumentAnalysis `json:"analysis"`
	CompanyName string               `json:"companyName,omitempty"`
	Timestamp   time.Time            `json:"timestamp"`
	Upload      map[string]any       `json:"upload,omitempty"`
	File        FileInfo             `json:"file"`
}

func (e CacheEntry) uploadView() UploadView {
	return UploadView{Upload: e.Upload, File: e.File, Analysis: e.Analysis}
}

// Pointer is the durable "current document" record.
type Pointer struct {
	DocumentID  string `json:"documentId"`
	CompanyName string `json:"companyName,omitempty"`
}
