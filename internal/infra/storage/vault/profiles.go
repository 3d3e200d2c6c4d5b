package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bryanwahyu/evidence-locker/internal/domain/evidence"
)

const profileSuffix = ".profile.json"

// profileDocument is the on-disk shape of one person-profile record.
type profileDocument struct {
	Name               string `json:"name"`
	Description        string `json:"description"`
	EnhancedDetails    string `json:"enhanced_details,omitempty"`
	ReferenceURL       string `json:"reference_url,omitempty"`
	ReferenceImagePath string `json:"reference_image_path,omitempty"`
	SavedAt            string `json:"saved_at"`
}

// SaveProfile persists a person-profile record as a JSON sidecar plus an
// optional reference image, and returns the profile's relative path.
func (v *Vault) SaveProfile(p evidence.PersonProfile, referenceImage []byte, imageExt string) (string, error) {
	base := SanitizeName(p.Name)
	if base == "" {
		base = "profile"
	}

	doc := profileDocument{
		Name:            p.Name,
		Description:     p.Details,
		EnhancedDetails: p.EnhancedDetails,
		SavedAt:         time.Now().UTC().Format(time.RFC3339),
	}

	unlock := v.lockDir(dirProfiles)
	defer unlock()

	if len(referenceImage) > 0 {
		if imageExt == "" {
			imageExt = ".png"
		}
		imgName := base + ".reference" + imageExt
		if err := os.WriteFile(filepath.Join(v.dir(dirProfiles), imgName), referenceImage, 0o644); err != nil {
			return "", fmt.Errorf("%w: write profile image: %v", evidence.ErrStorageIO, err)
		}
		doc.ReferenceImagePath = v.rel(dirProfiles, imgName)
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: encode profile: %v", evidence.ErrStorageIO, err)
	}
	jsonName := base + profileSuffix
	if err := os.WriteFile(filepath.Join(v.dir(dirProfiles), jsonName), payload, 0o644); err != nil {
		return "", fmt.Errorf("%w: write profile: %v", evidence.ErrStorageIO, err)
	}
	return v.rel(dirProfiles, jsonName), nil
}

// ListProfiles loads every person-profile record from disk.
func (v *Vault) ListProfiles() ([]evidence.PersonProfile, error) {
	var out []evidence.PersonProfile
	for _, name := range listFilesSafe(v.dir(dirProfiles)) {
		if !strings.HasSuffix(strings.ToLower(name), profileSuffix) {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(v.dir(dirProfiles), name))
		if err != nil {
			continue
		}
		var doc profileDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		p := evidence.PersonProfile{
			Name:            doc.Name,
			Details:         doc.Description,
			EnhancedDetails: doc.EnhancedDetails,
		}
		if p.Name == "" {
			p.Name = strings.TrimSuffix(name, profileSuffix)
		}
		out = append(out, p)
	}
	return out, nil
}

// DeleteProfile removes a profile record and any reference image saved next
// to it.
func (v *Vault) DeleteProfile(baseName string) error {
	base := SanitizeName(strings.TrimSuffix(baseName, profileSuffix))
	if base == "" {
		return fmt.Errorf("%w: missing profile identifier", evidence.ErrInvalidArgument)
	}
	unlock := v.lockDir(dirProfiles)
	defer unlock()

	jsonPath := filepath.Join(v.dir(dirProfiles), base+profileSuffix)
	if !fileExists(jsonPath) {
		return fmt.Errorf("%w: profile %s", evidence.ErrNotFound, base)
	}
	if err := os.Remove(jsonPath); err != nil {
		return fmt.Errorf("%w: delete profile: %v", evidence.ErrStorageIO, err)
	}
	for _, f := range listFilesSafe(v.dir(dirProfiles)) {
		if strings.HasPrefix(f, base+".reference.") {
			_ = os.Remove(filepath.Join(v.dir(dirProfiles), f))
		}
	}
	return nil
}
