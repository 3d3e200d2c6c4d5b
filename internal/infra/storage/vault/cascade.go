package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bryanwahyu/evidence-locker/internal/domain/evidence"
)

// Change is one {old, new} relative-path pair touched by a rename cascade.
type Change struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// RenameResult reports the primary file's final name plus every path pair the
// cascade touched, so callers can patch their own references.
type RenameResult struct {
	NewPrimaryName string   `json:"new_primary_name"`
	Changes        []Change `json:"changes"`
}

// reReportName matches the deterministic report naming convention and
// captures the asset name a report was derived from.
var reReportName = regexp.MustCompile(`(?i)^Analysis of (.+)\.txt$`)

var (
	rePathLineSingle  = regexp.MustCompile(`(?i)File Path:\s*app/data/analyzed files/[^\n]*`)
	rePathLineUnified = regexp.MustCompile(`(?i)File Path:\s*app/data/Unified files/[^\n]*`)
	reDoubleTxt       = regexp.MustCompile(`(?i)\.txt\.txt$`)
)

type reportRef struct {
	dirName string
	name    string
}

// discoverReports finds every report document derived from the named asset.
// Tier one is the naming convention across both report directories; tier two
// is a content scan of remaining .txt documents for the asset's storage path,
// which recovers links for reports renamed outside this engine.
func (v *Vault) discoverReports(assetName string) []reportRef {
	base := SanitizeName(assetName)
	prefix := strings.ToLower("Analysis of " + base)
	needleSingle := strings.ToLower(relPrefix + "/" + dirAssets + "/" + base)
	needleUnified := strings.ToLower(relPrefix + "/" + dirUnifiedAssets + "/" + base)

	var out []reportRef
	for _, d := range []string{dirReports, dirUnifiedReports} {
		for _, f := range listFilesSafe(v.dir(d)) {
			lower := strings.ToLower(f)
			if !strings.HasSuffix(lower, ".txt") {
				continue
			}
			if strings.HasPrefix(lower, prefix) {
				out = append(out, reportRef{dirName: d, name: f})
				continue
			}
			content, err := os.ReadFile(filepath.Join(v.dir(d), f))
			if err != nil {
				continue
			}
			lc := strings.ToLower(string(content))
			if strings.Contains(lc, needleSingle) || strings.Contains(lc, needleUnified) {
				out = append(out, reportRef{dirName: d, name: f})
			}
		}
	}
	return out
}

// tryRenameUnique renames oldName to desiredName inside one directory,
// resolving collisions with the usual " (n)" suffix.
func (v *Vault) tryRenameUnique(dirName, oldName, desiredName string) (string, error) {
	safe := SanitizeName(desiredName)
	unlock := v.lockDir(dirName)
	defer unlock()
	final := safe
	if final != oldName && fileExists(filepath.Join(v.dir(dirName), final)) {
		final = v.uniqueNameIn(v.dir(dirName), safe)
	}
	if err := os.Rename(filepath.Join(v.dir(dirName), oldName), filepath.Join(v.dir(dirName), final)); err != nil {
		return "", fmt.Errorf("%w: rename %s: %v", evidence.ErrStorageIO, oldName, err)
	}
	return final, nil
}

// rewriteBackReference updates the "File Path:" line inside a report body to
// point at the asset's new stored name. Best effort: a report that cannot be
// read or written is left as-is.
func (v *Vault) rewriteBackReference(reportPath, newAssetName string) {
	content, err := os.ReadFile(reportPath)
	if err != nil {
		return
	}
	updated := rePathLineSingle.ReplaceAllString(string(content),
		"File Path: "+relPrefix+"/"+dirAssets+"/"+newAssetName)
	updated = rePathLineUnified.ReplaceAllString(updated,
		"File Path: "+relPrefix+"/"+dirUnifiedAssets+"/"+newAssetName)
	_ = os.WriteFile(reportPath, []byte(updated), 0o644)
}

// Rename renames an asset or a report and cascades to every linked document.
// Renaming an asset renames its derived reports (suffix segments preserved)
// and rewrites their embedded back-references; renaming a report whose name
// matches the convention cascades back onto the asset.
func (v *Vault) Rename(oldName, newName string, kind Kind) (*RenameResult, error) {
	v.cascadeMu.Lock()
	defer v.cascadeMu.Unlock()

	if strings.TrimSpace(newName) == "" {
		return nil, fmt.Errorf("%w: missing new name", evidence.ErrInvalidArgument)
	}
	// Preserve the old extension when the caller omitted one.
	if filepath.Ext(newName) == "" {
		if ext := filepath.Ext(oldName); ext != "" {
			newName += ext
		}
	}

	loc, err := v.locateForKind(oldName, kind)
	if err != nil {
		return nil, err
	}

	if loc.Kind == KindAsset {
		return v.renameAsset(loc, newName)
	}
	return v.renameReport(loc, newName)
}

func (v *Vault) renameAsset(loc *Location, newName string) (*RenameResult, error) {
	oldBase := loc.Name
	finalName, err := v.tryRenameUnique(loc.DirName, oldBase, newName)
	if err != nil {
		return nil, err
	}
	res := &RenameResult{
		NewPrimaryName: finalName,
		Changes:        []Change{{Old: loc.Rel(), New: v.rel(loc.DirName, finalName)}},
	}

	for _, r := range v.discoverReports(oldBase) {
		stem, _ := splitExt(r.name)
		prefix := "Analysis of " + oldBase
		suffix := ""
		if len(stem) >= len(prefix) && strings.EqualFold(stem[:len(prefix)], prefix) {
			suffix = stem[len(prefix):]
		}
		desired := reDoubleTxt.ReplaceAllString("Analysis of "+finalName+suffix+".txt", ".txt")
		renamed, rerr := v.tryRenameUnique(r.dirName, r.name, desired)
		if rerr != nil {
			continue // partial cascade: report what did succeed
		}
		res.Changes = append(res.Changes, Change{Old: v.rel(r.dirName, r.name), New: v.rel(r.dirName, renamed)})
		v.rewriteBackReference(filepath.Join(v.dir(r.dirName), renamed), finalName)
	}
	return res, nil
}

func (v *Vault) renameReport(loc *Location, newName string) (*RenameResult, error) {
	oldReport := loc.Name
	desired := SanitizeName(newName)
	if !strings.HasSuffix(strings.ToLower(desired), ".txt") {
		desired += ".txt"
	}
	finalReport, err := v.tryRenameUnique(loc.DirName, oldReport, desired)
	if err != nil {
		return nil, err
	}
	res := &RenameResult{
		NewPrimaryName: finalReport,
		Changes:        []Change{{Old: loc.Rel(), New: v.rel(loc.DirName, finalReport)}},
	}

	m := reReportName.FindStringSubmatch(oldReport)
	if m == nil {
		return res, nil
	}
	assetOld := SanitizeName(m[1])
	assetDir := dirAssets
	if !fileExists(filepath.Join(v.dir(assetDir), assetOld)) {
		assetDir = dirUnifiedAssets
		if !fileExists(filepath.Join(v.dir(assetDir), assetOld)) {
			return res, nil
		}
	}
	mNew := reReportName.FindStringSubmatch(finalReport)
	if mNew == nil {
		return res, nil
	}
	assetFinal, rerr := v.tryRenameUnique(assetDir, assetOld, SanitizeName(mNew[1]))
	if rerr != nil {
		return res, nil
	}
	res.Changes = append(res.Changes, Change{Old: v.rel(assetDir, assetOld), New: v.rel(assetDir, assetFinal)})
	v.rewriteBackReference(filepath.Join(v.dir(loc.DirName), finalReport), assetFinal)
	return res, nil
}

// Delete removes an asset or report and every linked counterpart, returning
// the relative paths actually removed. Missing secondaries are not an error.
func (v *Vault) Delete(name string, kind Kind) ([]string, error) {
	v.cascadeMu.Lock()
	defer v.cascadeMu.Unlock()

	loc, err := v.locateForKind(name, kind)
	if err != nil {
		return nil, err
	}

	var deleted []string
	if tryUnlink(loc.Path) {
		deleted = append(deleted, loc.Rel())
	}

	if loc.Kind == KindAsset {
		for _, r := range v.discoverReports(loc.Name) {
			p := filepath.Join(v.dir(r.dirName), r.name)
			if tryUnlink(p) {
				deleted = append(deleted, v.rel(r.dirName, r.name))
			}
		}
		return deleted, nil
	}

	if m := reReportName.FindStringSubmatch(loc.Name); m != nil {
		assetName := SanitizeName(m[1])
		for _, d := range []string{dirAssets, dirUnifiedAssets} {
			p := filepath.Join(v.dir(d), assetName)
			if fileExists(p) {
				if tryUnlink(p) {
					deleted = append(deleted, v.rel(d, assetName))
				}
				break
			}
		}
	}
	return deleted, nil
}

func tryUnlink(p string) bool {
	return os.Remove(p) == nil
}
