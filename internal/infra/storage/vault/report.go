package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bryanwahyu/evidence-locker/internal/domain/evidence"
)

// ReportInput describes one report document to persist. Two or more display
// names make it a unified (case) report.
type ReportInput struct {
	DisplayNames []string
	StoredNames  []string
	CombinedName string
	Result       *evidence.AnalysisResult
	When         time.Time
}

func (in ReportInput) unified() bool { return len(in.DisplayNames) >= 2 }

// SaveReport writes a deterministically named, human-readable report document
// derived from one asset or one case, with collision resolution, and returns
// its identity.
func (v *Vault) SaveReport(in ReportInput) (StoredFile, error) {
	if len(in.DisplayNames) == 0 || in.Result == nil {
		return StoredFile{}, fmt.Errorf("%w: missing report data", evidence.ErrInvalidArgument)
	}
	if in.When.IsZero() {
		in.When = time.Now().UTC()
	}

	targetDir := dirReports
	var base string
	var pathLines []string

	if in.unified() {
		targetDir = dirUnifiedReports
		label := SanitizeName(in.CombinedName)
		if label == "" {
			label = SanitizeName(in.DisplayNames[0]) + " + " + SanitizeName(in.DisplayNames[1])
		}
		base = SanitizeName("Analysis of " + label + ".txt")
		names := in.StoredNames
		if len(names) < 2 {
			names = in.DisplayNames
		}
		for _, n := range names {
			pathLines = append(pathLines, relPrefix+"/"+dirAssets+"/"+SanitizeName(n))
		}
	} else {
		stored := in.DisplayNames[0]
		if len(in.StoredNames) > 0 && in.StoredNames[0] != "" {
			stored = in.StoredNames[0]
		}
		safeStored := SanitizeName(stored)
		base = SanitizeName("Analysis of " + safeStored + ".txt")
		pathLines = []string{relPrefix + "/" + dirAssets + "/" + safeStored}
	}

	unlock := v.lockDir(targetDir)
	defer unlock()
	final := v.uniqueNameIn(v.dir(targetDir), base)
	full := filepath.Join(v.dir(targetDir), final)
	if err := os.WriteFile(full, []byte(renderReport(in, pathLines)), 0o644); err != nil {
		return StoredFile{}, fmt.Errorf("%w: write report %s: %v", evidence.ErrStorageIO, final, err)
	}
	return StoredFile{Name: final, Path: full, Rel: v.rel(targetDir, final)}, nil
}

func renderReport(in ReportInput, pathLines []string) string {
	a := in.Result
	var b strings.Builder
	push := func(lines ...string) {
		for _, l := range lines {
			b.WriteString(l)
			b.WriteString("\n")
		}
	}

	push("=====================================")
	if in.unified() {
		push("Files: " + strings.Join(in.DisplayNames, " + "))
		push("File Paths:")
		for i, p := range pathLines {
			push(fmt.Sprintf("- [%d] %s", i+1, p))
		}
	} else {
		push("File Name: " + in.DisplayNames[0])
		push("File Path: " + pathLines[0])
	}
	push("Analysis Date: " + in.When.Format(time.RFC3339))
	push("-------------------------------------")
	push("Summary:", "")
	push(orDefault(a.Summary, "No summary provided."), "")
	push("New Findings Summary:")
	push(orDefault(a.NewFindingsSummary, "N/A"), "")
	push(fmt.Sprintf("Confidence Score: %d%%", a.ConfidenceScore))
	push(fmt.Sprintf("Severity Score: %d", a.SeverityScore))
	push("Children Detected: " + yesNo(a.ChildrenDetected))
	push("")

	push("Key Observations:")
	if len(a.KeyObservations) == 0 {
		push("None.")
	}
	for _, o := range a.KeyObservations {
		push(fmt.Sprintf("- [%s] %s", orDefault(o.Timestamp, "N/A"), o.Description))
	}
	push("")

	push("Timeline Events:")
	if len(a.TimelineEvents) == 0 {
		push("None.")
	}
	for _, t := range a.TimelineEvents {
		subjects := strings.Join(t.Subjects, ", ")
		if subjects == "" {
			subjects = "Unknown"
		}
		push(fmt.Sprintf("- [%s] %s (Subjects: %s)", orDefault(t.Timestamp, "N/A"), t.Description, subjects))
	}
	push("")

	push("Cross-References:")
	if len(a.CrossReferences) == 0 {
		push("None.")
	}
	for _, c := range a.CrossReferences {
		push(fmt.Sprintf("- File %q: %s", orDefault(c.FileName, "N/A"), c.Observation))
	}
	push("")

	push("Emotional Analysis:")
	if len(a.EmotionalAnalysis) == 0 {
		push("None.")
	}
	for _, e := range a.EmotionalAnalysis {
		push(fmt.Sprintf("- %s: %s", orDefault(e.Emotion, "N/A"), e.Evidence))
	}
	push("")

	push("Recognized Persons:")
	if len(a.RecognizedPersons) == 0 {
		push("None.")
	}
	for _, r := range a.RecognizedPersons {
		push(fmt.Sprintf("- %s (at %s) - %d%%", orDefault(r.Name, "Unknown"), orDefault(r.Timestamp, "N/A"), r.Confidence))
	}
	push("")

	push("Potential Violations:")
	if len(a.PotentialViolations) == 0 {
		push("None.")
	}
	for _, p := range a.PotentialViolations {
		push("- " + p)
	}
	push("")

	if a.FullTranscript != "" && a.FullTranscript != "N/A" {
		push("Full Transcript:")
		push(a.FullTranscript, "")
	}
	push("=====================================")
	return b.String()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
