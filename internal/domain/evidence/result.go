package evidence

import "fmt"

// Observation value object
type Observation struct {
	Timestamp   string `json:"timestamp"`
	Description string `json:"description"`
}

type TimelineEvent struct {
	Timestamp   string   `json:"timestamp"`
	Description string   `json:"description"`
	Subjects    []string `json:"subjects"`
}

type CrossReference struct {
	FileName    string `json:"file_name"`
	Observation string `json:"observation"`
}

type EmotionalCue struct {
	Emotion  string `json:"emotion"`
	Evidence string `json:"evidence"`
}

type RecognizedPerson struct {
	Name       string `json:"name"`
	Timestamp  string `json:"timestamp"`
	Confidence int    `json:"confidence"`
}

// AnalysisResult is the structured output of the external provider.
// Empty collections are valid output, not a parsing failure.
type AnalysisResult struct {
	Summary             string             `json:"summary"`
	NewFindingsSummary  string             `json:"new_findings_summary"`
	SeverityScore       int                `json:"severity_score"`
	ConfidenceScore     int                `json:"confidence_score"`
	ChildrenDetected    bool               `json:"children_detected"`
	KeyObservations     []Observation      `json:"key_observations"`
	TimelineEvents      []TimelineEvent    `json:"timeline_events"`
	CrossReferences     []CrossReference   `json:"cross_references"`
	EmotionalAnalysis   []EmotionalCue     `json:"emotional_analysis"`
	RecognizedPersons   []RecognizedPerson `json:"recognized_persons"`
	PotentialViolations []string           `json:"potential_violations"`
	FullTranscript      string             `json:"full_transcript,omitempty"`
}

func (a *AnalysisResult) Clone() *AnalysisResult {
	if a == nil {
		return nil
	}
	cp := *a
	cp.KeyObservations = append([]Observation(nil), a.KeyObservations...)
	cp.TimelineEvents = make([]TimelineEvent, len(a.TimelineEvents))
	for i, t := range a.TimelineEvents {
		t.Subjects = append([]string(nil), t.Subjects...)
		cp.TimelineEvents[i] = t
	}
	cp.CrossReferences = append([]CrossReference(nil), a.CrossReferences...)
	cp.EmotionalAnalysis = append([]EmotionalCue(nil), a.EmotionalAnalysis...)
	cp.RecognizedPersons = append([]RecognizedPerson(nil), a.RecognizedPersons...)
	cp.PotentialViolations = append([]string(nil), a.PotentialViolations...)
	return &cp
}

// Normalize replaces nil collections with empty ones so an absent finding is
// never mistaken for malformed output downstream.
func (a *AnalysisResult) Normalize() {
	if a.KeyObservations == nil {
		a.KeyObservations = []Observation{}
	}
	if a.TimelineEvents == nil {
		a.TimelineEvents = []TimelineEvent{}
	}
	if a.CrossReferences == nil {
		a.CrossReferences = []CrossReference{}
	}
	if a.EmotionalAnalysis == nil {
		a.EmotionalAnalysis = []EmotionalCue{}
	}
	if a.RecognizedPersons == nil {
		a.RecognizedPersons = []RecognizedPerson{}
	}
	if a.PotentialViolations == nil {
		a.PotentialViolations = []string{}
	}
}

// StubResult is the placeholder attached to every member of an analyzed case.
// It redirects readers to the case's unified report and mirrors the
// case-level scores.
func StubResult(caseName string, unified *AnalysisResult) *AnalysisResult {
	stub := &AnalysisResult{
		Summary:            fmt.Sprintf("See unified case report: %s", caseName),
		NewFindingsSummary: fmt.Sprintf("Analyzed jointly as part of '%s'.", caseName),
		CrossReferences: []CrossReference{
			{FileName: caseName, Observation: fmt.Sprintf("This file is part of the unified analysis '%s'.", caseName)},
		},
		FullTranscript: "N/A",
	}
	if unified != nil {
		stub.SeverityScore = unified.SeverityScore
		stub.ConfidenceScore = unified.ConfidenceScore
		stub.ChildrenDetected = unified.ChildrenDetected
	}
	stub.Normalize()
	return stub
}
