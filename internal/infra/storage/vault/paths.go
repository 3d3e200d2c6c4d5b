package vault

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bryanwahyu/evidence-locker/internal/domain/evidence"
)

// ResolveRelative turns a caller-supplied relative path like
// "app/data/analysis reports/Report.txt" into an absolute path under the
// storage root. Resolution fails closed: anything that escapes the root, or
// does not exist, comes back as not found.
func (v *Vault) ResolveRelative(rel string) (string, error) {
	if strings.TrimSpace(rel) == "" {
		return "", fmt.Errorf("%w: empty path", evidence.ErrNotFound)
	}
	sub := strings.TrimLeft(rel, "./\\")
	if lower := strings.ToLower(sub); strings.HasPrefix(lower, relPrefix+"/") {
		sub = sub[len(relPrefix)+1:]
	}
	abs := filepath.Join(v.root, filepath.FromSlash(sub))
	if abs != v.root && !strings.HasPrefix(abs, v.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", evidence.ErrNotFound, rel)
	}
	if !fileExists(abs) {
		return "", fmt.Errorf("%w: %s", evidence.ErrNotFound, rel)
	}
	return abs, nil
}
