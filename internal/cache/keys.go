package cache

import (
	"fmt"
	"strings"
)

// View names a consumer of cached data.
type View string

const (
	ViewUpload    View = "upload"
	ViewDashboard View = "dashboard"
	ViewSummary   View = "summary"
	ViewNews      View = "news"
	ViewFiles     View = "files"
)

// Session keys.
const (
	prefixDocument  = "document_"
	prefixUpload    = "upload_"
	prefixDashboard = "dashboard_"
	prefixSummary   = "summary_"
	prefixNews      = "news_"
	prefixFiles     = "files_"

	keyFilesList    = prefixFiles + "list"
	keyLatestUpload = "LATEST_UPLOAD_FILE_ID"
	keyPinned       = "PINNED_FILE_IDS"
)

// Durable keys.
const (
	durableLatestDocumentID = "latestDocumentId"
	durableLatestCompany    = "latestCompanyName"
	durableLatestAnalysis   = "latestAnalysis"
	durableLatestUpload     = "latestUpload"
	durableUploadedFiles    = "uploadedFiles"
)

// derivedPrefixes are the per-document and per-company caches removed when a
// new document is recorded.
var derivedPrefixes = []string{
	prefixDocument,
	prefixUpload,
	prefixDashboard,
	prefixSummary,
	prefixNews,
	prefixFiles,
}

var pointerKeys = []string{durableLatestDocumentID, durableLatestCompany, durableLatestAnalysis, durableLatestUpload}

func viewKey(view View, key string) (string, error) {
	switch view {
	case ViewUpload:
		return idKey(prefixUpload, key)
	case ViewDashboard:
		return idKey(prefixDashboard, key)
	case ViewSummary:
		return idKey(prefixSummary, key)
	case ViewNews:
		return idKey(prefixNews, key)
	case ViewFiles:
		return keyFilesList, nil
	default:
		return "", fmt.Errorf("unknown cache view %q", view)
	}
}

func idKey(prefix, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("empty id for %s key", strings.TrimSuffix(prefix, "_"))
	}
	return prefix + id, nil
}

func documentKey(id string) string {
	return prefixDocument + id
}

// updatesPointer reports whether writes for the view move the durable
// "latest document" pointer.
func (v View) updatesPointer() bool {
	return v == ViewUpload || v == ViewDashboard || v == ViewSummary
}

// splitDerived returns the prefix and suffix of a derived key.
func splitDerived(key string) (prefix, suffix string, ok bool) {
	for _, p := range derivedPrefixes {
		if strings.HasPrefix(key, p) {
			return p, strings.TrimPrefix(key, p), true
		}
	}
	return "", "", false
}
