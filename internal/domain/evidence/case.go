package evidence

import "time"

// ID tipe untuk Case
type CaseID string

const (
	MinCaseMembers = 2
	MaxCaseMembers = 7
)

// Case groups 2..7 records into one unified analysis unit with its own
// lifecycle and its own report document.
type Case struct {
	ID                CaseID          `json:"id"`
	DisplayName       string          `json:"display_name"`
	MemberIDs         []RecordID      `json:"member_ids"`
	Status            Status          `json:"status"`
	UnifiedReportName string          `json:"unified_report_name,omitempty"`
	UnifiedReportPath string          `json:"unified_report_path,omitempty"`
	Analysis          *AnalysisResult `json:"analysis,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

func (c *Case) Clone() *Case {
	if c == nil {
		return nil
	}
	cp := *c
	cp.MemberIDs = append([]RecordID(nil), c.MemberIDs...)
	cp.Analysis = c.Analysis.Clone()
	return &cp
}
