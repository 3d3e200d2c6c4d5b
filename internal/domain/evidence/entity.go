package evidence

import (
	"path/filepath"
	"strings"
	"time"
)

// ID tipe untuk Record
type RecordID string

// Kind enum
type Kind string

const (
	KindImage    Kind = "image"
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindDocument Kind = "document"
)

// KindForName infers the evidence kind from the file extension.
// Anything unrecognized is treated as a document.
func KindForName(name string) Kind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif":
		return KindImage
	case ".mp4", ".webm", ".mov", ".mkv":
		return KindVideo
	case ".mp3", ".wav", ".m4a", ".ogg":
		return KindAudio
	default:
		return KindDocument
	}
}

// Status enum
type Status string

const (
	StatusNew             Status = "new"
	StatusAnalyzing       Status = "analyzing"
	StatusPendingReview   Status = "analyzed-pending-review"
	StatusNeedsManualTags Status = "analyzed-needs-manual-tagging"
	StatusAnalyzed        Status = "analyzed"
	StatusError           Status = "error"
)

// Aggregate Root: Record
// One uploaded media/document item and its analysis lifecycle.
type Record struct {
	ID                  RecordID        `json:"id"`
	DisplayName         string          `json:"display_name"`
	Kind                Kind            `json:"kind"`
	Status              Status          `json:"status"`
	ContentHash         string          `json:"content_hash,omitempty"`
	StoredAssetName     string          `json:"stored_asset_name,omitempty"`
	StoredAssetPath     string          `json:"stored_asset_path,omitempty"`
	ReportDocumentPaths []string        `json:"report_document_paths"`
	Analysis            *AnalysisResult `json:"analysis,omitempty"`
	Location            string          `json:"location,omitempty"`
	RecognitionVerified bool            `json:"recognition_verified"`
	Instructions        string          `json:"instructions,omitempty"`
	UploadedAt          time.Time       `json:"uploaded_at"`
}

// Clone returns a deep copy. The store hands out and accepts only copies so
// readers never observe a half-applied transition.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	cp.ReportDocumentPaths = append([]string(nil), r.ReportDocumentPaths...)
	cp.Analysis = r.Analysis.Clone()
	return &cp
}
