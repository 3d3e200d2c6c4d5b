package vault

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SanitizeName strips any directory component from a user-supplied name and
// replaces characters that are unsafe in file names.
func SanitizeName(input string) string {
	base := filepath.Base(strings.TrimSpace(input))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	var b strings.Builder
	b.Grow(len(base))
	for _, r := range base {
		switch {
		case r < 0x20 || r == 0x7f:
			b.WriteRune('_')
		case strings.ContainsRune(`<>:"/\|?*`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func splitExt(name string) (stem, ext string) {
	ext = filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

// uniqueNameIn returns the desired name, or the first free " (n)" variant when
// it is taken. The caller must hold the directory lock so the check and the
// subsequent create cannot race.
func (v *Vault) uniqueNameIn(dir, desired string) string {
	stem, ext := splitExt(desired)
	candidate := desired
	counter := 1
	for fileExists(filepath.Join(dir, candidate)) {
		counter++
		candidate = fmt.Sprintf("%s (%d)%s", stem, counter, ext)
	}
	return candidate
}
