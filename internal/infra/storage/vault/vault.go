// Package vault owns the storage root: the fixed directory layout, safe
// naming, asset/report persistence, and the rename/delete cascade that keeps
// report documents consistent with the assets they were derived from.
package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bryanwahyu/evidence-locker/internal/domain/evidence"
)

// Fixed flat subdirectories under the storage root. Directory names are part
// of the on-disk contract; report documents embed them in back-references.
const (
	dirAssets         = "analyzed files"
	dirUnifiedAssets  = "Unified files"
	dirReports        = "analysis reports"
	dirUnifiedReports = "Unified analysis reports"
	dirProfiles       = "profiles"
	dirTestimonies    = "testimonies"

	// relPrefix is the prefix of every relative path the vault hands out and
	// accepts back. Report back-reference lines use it too.
	relPrefix = "app/data"
)

// Kind selects which family of directories an operation targets.
type Kind string

const (
	KindAsset  Kind = "asset"
	KindReport Kind = "report"
	KindAuto   Kind = "auto"
)

// StoredFile identifies a file the vault persisted.
type StoredFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Rel  string `json:"relative_path"`
}

// Vault is safe for concurrent use. Unique-name generation is serialized per
// directory so check-and-create cannot race; rename/delete cascades take an
// exclusive lock so a concurrent report save cannot land mid-cascade.
type Vault struct {
	root string

	cascadeMu sync.Mutex

	dirMuGuard sync.Mutex
	dirMu      map[string]*sync.Mutex
}

// New ensures the storage root and its fixed layout exist.
func New(root string) (*Vault, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve root %q: %v", evidence.ErrStorageIO, root, err)
	}
	v := &Vault{root: abs, dirMu: make(map[string]*sync.Mutex)}
	for _, d := range []string{"", dirAssets, dirUnifiedAssets, dirReports, dirUnifiedReports, dirProfiles, dirTestimonies} {
		if err := os.MkdirAll(filepath.Join(abs, d), 0o755); err != nil {
			return nil, fmt.Errorf("%w: create %q: %v", evidence.ErrStorageIO, d, err)
		}
	}
	return v, nil
}

func (v *Vault) Root() string { return v.root }

func (v *Vault) dir(name string) string { return filepath.Join(v.root, name) }

// rel builds the relative path the rest of the system uses to refer to a
// stored file, e.g. "app/data/analyzed files/video1.mp4".
func (v *Vault) rel(dirName, fileName string) string {
	return relPrefix + "/" + dirName + "/" + fileName
}

func (v *Vault) lockDir(dirName string) func() {
	v.dirMuGuard.Lock()
	mu, ok := v.dirMu[dirName]
	if !ok {
		mu = &sync.Mutex{}
		v.dirMu[dirName] = mu
	}
	v.dirMuGuard.Unlock()
	mu.Lock()
	return mu.Unlock
}

// Location is a file found under one of the evidence directories.
type Location struct {
	DirName string
	Name    string
	Path    string
	Kind    Kind
}

func (l *Location) Rel() string {
	return relPrefix + "/" + l.DirName + "/" + l.Name
}

// Locate finds a file by name across the four evidence directories, assets
// before reports, single before unified.
func (v *Vault) Locate(name string) (*Location, error) {
	safe := SanitizeName(name)
	for _, c := range []struct {
		dir  string
		kind Kind
	}{
		{dirAssets, KindAsset},
		{dirUnifiedAssets, KindAsset},
		{dirReports, KindReport},
		{dirUnifiedReports, KindReport},
	} {
		p := filepath.Join(v.dir(c.dir), safe)
		if fileExists(p) {
			return &Location{DirName: c.dir, Name: safe, Path: p, Kind: c.kind}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", evidence.ErrNotFound, name)
}

// locateForKind is Locate with a forced-directory fallback when the caller
// declared what the name refers to.
func (v *Vault) locateForKind(name string, kind Kind) (*Location, error) {
	loc, err := v.Locate(name)
	if err == nil || kind == KindAuto {
		return loc, err
	}
	dirs := []string{dirAssets, dirUnifiedAssets}
	if kind == KindReport {
		dirs = []string{dirReports, dirUnifiedReports}
	}
	safe := SanitizeName(name)
	for _, d := range dirs {
		p := filepath.Join(v.dir(d), safe)
		if fileExists(p) {
			return &Location{DirName: d, Name: safe, Path: p, Kind: kind}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", evidence.ErrNotFound, name)
}

// StoreAsset persists an uploaded original with collision resolution and
// returns its stored identity.
func (v *Vault) StoreAsset(declaredName string, data []byte) (StoredFile, error) {
	return v.storeIn(dirAssets, declaredName, data)
}

// StoreUnifiedAsset persists an original under the unified variant directory.
func (v *Vault) StoreUnifiedAsset(declaredName string, data []byte) (StoredFile, error) {
	return v.storeIn(dirUnifiedAssets, declaredName, data)
}

func (v *Vault) storeIn(dirName, declaredName string, data []byte) (StoredFile, error) {
	safe := SanitizeName(declaredName)
	if safe == "" {
		return StoredFile{}, fmt.Errorf("%w: empty file name", evidence.ErrInvalidArgument)
	}
	unlock := v.lockDir(dirName)
	defer unlock()
	final := v.uniqueNameIn(v.dir(dirName), safe)
	full := filepath.Join(v.dir(dirName), final)
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return StoredFile{}, fmt.Errorf("%w: write %s: %v", evidence.ErrStorageIO, final, err)
	}
	return StoredFile{Name: final, Path: full, Rel: v.rel(dirName, final)}, nil
}

// ContentTypeFor maps a file name to the content type used when serving it.
func ContentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	case ".mkv":
		return "video/x-matroska"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Open finds a stored file by name across every managed directory and returns
// its absolute path with a content type, for serving.
func (v *Vault) Open(name string) (string, string, error) {
	safe := SanitizeName(name)
	for _, d := range []string{dirAssets, dirReports, dirUnifiedReports, dirUnifiedAssets, dirTestimonies, dirProfiles} {
		p := filepath.Join(v.dir(d), safe)
		if fileExists(p) {
			return p, ContentTypeFor(p), nil
		}
	}
	return "", "", fmt.Errorf("%w: %s", evidence.ErrNotFound, name)
}

// WatchDirs lists the directories outside tools may mutate behind the
// engine's back, for filesystem watching.
func (v *Vault) WatchDirs() []string {
	return []string{
		v.dir(dirAssets),
		v.dir(dirUnifiedAssets),
		v.dir(dirReports),
		v.dir(dirUnifiedReports),
	}
}

// RelFor converts an absolute path under the root to the relative form the
// rest of the system uses. ok is false for paths outside the root.
func (v *Vault) RelFor(abs string) (string, bool) {
	sub, err := filepath.Rel(v.root, abs)
	if err != nil || strings.HasPrefix(sub, "..") {
		return "", false
	}
	return relPrefix + "/" + filepath.ToSlash(sub), true
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func listFilesSafe(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names
}
