package evidence

import (
	"context"
	"time"
)

// AssetRef identifies one stored asset handed to the provider.
type AssetRef struct {
	DisplayName string
	StoredName  string
	StoredPath  string
	Kind        Kind
}

// PersonProfile is a known person the provider should try to recognize.
type PersonProfile struct {
	Name            string `json:"name"`
	Details         string `json:"details"`
	EnhancedDetails string `json:"enhanced_details,omitempty"`
}

// AnalysisRequest carries everything the external provider needs for one run.
type AnalysisRequest struct {
	Assets           []AssetRef
	KnownPersons     []PersonProfile
	PriorCaseSummary string
	TestimonyContext string
	Instructions     string
	// ManualTags non-nil means tags were supplied this run, even when empty.
	ManualTags []string
}

// Provider port (interface untuk external analysis)
type Provider interface {
	Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error)
}

// Transition is one audit row for a lifecycle status change.
type Transition struct {
	RecordID   string
	CaseID     string
	FromStatus Status
	ToStatus   Status
	Note       string
	OccurredAt time.Time
}

// AuditLog port (interface untuk persistence of transitions)
type AuditLog interface {
	Append(ctx context.Context, t Transition) error
}

// Mirror port: best-effort replication of stored files to remote storage.
type Mirror interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
}
