package analysisapi

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// UploadReceipt is the answer to POST /upload/.
type UploadReceipt struct {
	FileID   string `json:"file_id"`
	StoredAs string `json:"stored_as,omitempty"`
	Company  string `json:"company,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Summary is the answer to GET /summary/{id}.
type Summary struct {
	Success   bool           `json:"success"`
	File      string         `json:"file,omitempty"`
	Company   string         `json:"company,omitempty"`
	Section   string         `json:"section,omitempty"`
	StartPage *int           `json:"start_page,omitempty"`
	EndPage   *int           `json:"end_page,omitempty"`
	Summary   string         `json:"summary"`
	MDAText   string         `json:"mda_text,omitempty"`
	KPIs      map[string]any `json:"kpis,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// Article is one news item for a company.
type Article struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	URL         string  `json:"url"`
	Image       *string `json:"image"`
}

// FileRecord is one entry of GET /files/.
type FileRecord struct {
	ID         string    `json:"id"`
	StoredAs   string    `json:"stored_as"`
	Name       string    `json:"name"`
	UploadedAt Timestamp `json:"uploaded_at"`
	Size       int64     `json:"size"`
	Type       string    `json:"type"`
	Company    string    `json:"company,omitempty"`
}

// Timestamp decodes RFC 3339 times and the service's naive ISO datetimes,
// which are UTC. Null and "" decode to the zero time.
type Timestamp struct {
	time.Time
}

const naiveLayout = "2006-01-02T15:04:05.999999999"

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, naiveLayout, "2006-01-02 15:04:05.999999999"} {
		if v, err := time.Parse(layout, raw); err == nil {
			t.Time = v.UTC()
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized format %q", raw)
}

// FileMetadata is the body of POST /files/save.
type FileMetadata struct {
	ID         string `json:"id"`
	StoredAs   string `json:"stored_as"`
	Name       string `json:"name"`
	UploadedAt string `json:"uploadedAt,omitempty"`
	Size       int64  `json:"size"`
	Type       string `json:"type"`
	Company    string `json:"company,omitempty"`
}
