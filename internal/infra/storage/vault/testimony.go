package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bryanwahyu/evidence-locker/internal/domain/evidence"
)

// TestimonyInput is one testimony record to persist: the user's own account
// or a named person's.
type TestimonyInput struct {
	PersonName string // empty = the user's own testimony
	Text       string
	Summary    string
}

// TestimonyContext concatenates stored testimony documents for use as
// analysis context, capped at maxBytes.
func (v *Vault) TestimonyContext(maxBytes int) string {
	if maxBytes <= 0 {
		maxBytes = 8192
	}
	var parts []string
	for _, name := range listFilesSafe(v.dir(dirTestimonies)) {
		if !strings.HasSuffix(strings.ToLower(name), ".txt") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(v.dir(dirTestimonies), name))
		if err != nil {
			continue
		}
		parts = append(parts, string(raw))
	}
	joined := strings.Join(parts, "\n\n")
	if len(joined) > maxBytes {
		joined = joined[:maxBytes]
	}
	return joined
}

// SaveTestimony writes a testimony record with the usual unique-name rule.
func (v *Vault) SaveTestimony(in TestimonyInput) (StoredFile, error) {
	base := "My Testimony"
	kind := "User"
	if in.PersonName != "" {
		base = "Person Testimony - " + SanitizeName(in.PersonName)
		kind = "Person"
	}
	savedAt := time.Now().UTC().Format(time.RFC3339)

	var lines []string
	lines = append(lines, "=====================================")
	lines = append(lines, "Type: "+kind)
	if in.PersonName != "" {
		lines = append(lines, "Person: "+in.PersonName)
	}
	lines = append(lines, "Saved At: "+savedAt)
	lines = append(lines, "-------------------------------------")
	if in.Summary != "" {
		lines = append(lines, "Context Summary:", in.Summary, "")
	}
	lines = append(lines, "Full Testimony:", in.Text)
	lines = append(lines, "=====================================")

	unlock := v.lockDir(dirTestimonies)
	defer unlock()
	final := v.uniqueNameIn(v.dir(dirTestimonies), SanitizeName(base+".txt"))
	full := filepath.Join(v.dir(dirTestimonies), final)
	if err := os.WriteFile(full, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return StoredFile{}, fmt.Errorf("%w: write testimony: %v", evidence.ErrStorageIO, err)
	}
	return StoredFile{Name: final, Path: full, Rel: v.rel(dirTestimonies, final)}, nil
}
