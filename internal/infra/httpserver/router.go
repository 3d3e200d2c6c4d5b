package httpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appevidence "github.com/bryanwahyu/evidence-locker/internal/application/evidence"
	domain "github.com/bryanwahyu/evidence-locker/internal/domain/evidence"
	"github.com/bryanwahyu/evidence-locker/internal/infra/storage/vault"
	"github.com/bryanwahyu/evidence-locker/internal/middleware"
)

// AuditReader exposes the transition history kept by the audit log.
type AuditReader interface {
	Recent(ctx context.Context, recordID string, limit int) ([]domain.Transition, error)
}

type Router struct {
	svc   *appevidence.Service
	vault *vault.Vault
	audit AuditReader // nil when no database is configured
}

func NewRouter(svc *appevidence.Service, v *vault.Vault, audit AuditReader, health http.HandlerFunc) http.Handler {
	r := &Router{svc: svc, vault: v, audit: audit}
	mux := chi.NewRouter()

	mux.Get("/health", health)

	mux.Route("/api", func(rt chi.Router) {
		rt.Post("/storage/upload", r.wrap(r.handleUpload))
		rt.Post("/storage/evidence-rename", r.wrap(r.handleRename))
		rt.Post("/storage/evidence-delete", r.wrap(r.handleStorageDelete))
		rt.Post("/storage/reveal", r.wrap(r.handleReveal))
		rt.Get("/storage/file/{name}", r.wrap(r.handleServeFile))
		rt.Post("/storage/profile", r.wrap(r.handleProfileSave))
		rt.Get("/storage/profiles", r.wrap(r.handleProfileList))
		rt.Post("/storage/profile-delete", r.wrap(r.handleProfileDelete))
		rt.Post("/storage/testimony", r.wrap(r.handleTestimony))

		rt.Get("/evidence", r.wrap(r.handleEvidenceList))
		rt.Get("/evidence/{id}", r.wrap(r.handleEvidenceGet))
		rt.Get("/evidence/{id}/events", r.wrap(r.handleEvidenceEvents))
		rt.Post("/evidence/{id}/analyze", r.wrap(r.handleAnalyze))
		rt.Post("/evidence/{id}/tags", r.wrap(r.handleManualTags))
		rt.Post("/evidence/{id}/review", r.wrap(r.handleReview))
		rt.Post("/evidence/{id}/rerun", r.wrap(r.handleRerun))
		rt.Post("/evidence/{id}/delete", r.wrap(r.handleEvidenceDelete))

		rt.Post("/cases", r.wrap(r.handleCaseCreate))
		rt.Get("/cases", r.wrap(r.handleCaseList))
		rt.Get("/cases/{id}", r.wrap(r.handleCaseGet))
		rt.Post("/cases/{id}/result", r.wrap(r.handleCaseResult))
		rt.Post("/cases/{id}/rerun", r.wrap(r.handleCaseRerun))
		rt.Post("/cases/{id}/delete", r.wrap(r.handleCaseDelete))
	})

	return middleware.LoggingMiddleware(mux)
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			http.Error(w, err.Error(), statusFor(err))
		}
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAnalysisInFlight):
		return http.StatusConflict
	case errors.Is(err, domain.ErrProviderFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}

func decodeBody(req *http.Request, v any) error {
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

// recordResponse is the shape every record-mutating endpoint returns: the
// record plus an optional warning (analysis fine, report save not).
type recordResponse struct {
	Record  *domain.Record `json:"record"`
	Warning string         `json:"warning,omitempty"`
}

type caseResponse struct {
	Case    *domain.Case `json:"case"`
	Warning string       `json:"warning,omitempty"`
}

// POST /api/storage/upload
// Body: {"fileName": "...", "fileData": "<base64>", "unified": false}
// unified true stores the upload as an already-combined artifact.
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		FileName string `json:"fileName"`
		FileData string `json:"fileData"`
		Unified  bool   `json:"unified"`
	}
	if err := decodeBody(req, &body); err != nil {
		return err
	}
	if body.FileName == "" {
		return fmt.Errorf("%w: fileName is required", domain.ErrInvalidArgument)
	}
	data, err := base64.StdEncoding.DecodeString(body.FileData)
	if err != nil {
		return fmt.Errorf("%w: fileData is not valid base64", domain.ErrInvalidArgument)
	}

	ingest := r.svc.Ingest
	if body.Unified {
		ingest = r.svc.IngestUnified
	}
	rec, err := ingest(req.Context(), body.FileName, data)
	if err != nil {
		return err
	}
	return writeJSON(w, map[string]any{
		"id":             rec.ID,
		"storedFileName": rec.StoredAssetName,
		"relativePath":   rec.StoredAssetPath,
	})
}

// GET /api/evidence
func (r *Router) handleEvidenceList(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, r.svc.Records())
}

// GET /api/evidence/{id}
func (r *Router) handleEvidenceGet(w http.ResponseWriter, req *http.Request) error {
	rec, err := r.svc.Record(domain.RecordID(chi.URLParam(req, "id")))
	if err != nil {
		return err
	}
	return writeJSON(w, rec)
}

// GET /api/evidence/{id}/events?limit=50
func (r *Router) handleEvidenceEvents(w http.ResponseWriter, req *http.Request) error {
	if r.audit == nil {
		return writeJSON(w, []domain.Transition{})
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	events, err := r.audit.Recent(req.Context(), chi.URLParam(req, "id"), limit)
	if err != nil {
		return err
	}
	if events == nil {
		events = []domain.Transition{}
	}
	return writeJSON(w, events)
}

// POST /api/evidence/{id}/analyze
// Body: {"location": "...", "instructions": "..."}
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Location     string `json:"location"`
		Instructions string `json:"instructions"`
	}
	if err := decodeBody(req, &body); err != nil {
		return err
	}
	rec, warn, err := r.svc.Analyze(req.Context(), domain.RecordID(chi.URLParam(req, "id")), appevidence.AnalyzeOptions{
		Location:     body.Location,
		Instructions: body.Instructions,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, recordResponse{Record: rec, Warning: warn})
}

// POST /api/evidence/{id}/tags
// Body: {"tags": ["Alice"]}. An empty list is a valid submission.
func (r *Router) handleManualTags(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Tags []string `json:"tags"`
	}
	if err := decodeBody(req, &body); err != nil {
		return err
	}
	rec, warn, err := r.svc.SubmitManualTags(req.Context(), domain.RecordID(chi.URLParam(req, "id")), body.Tags)
	if err != nil {
		return err
	}
	return writeJSON(w, recordResponse{Record: rec, Warning: warn})
}

// POST /api/evidence/{id}/review
// Body: {"recognized": ["Bob"]}
func (r *Router) handleReview(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Recognized []string `json:"recognized"`
	}
	if err := decodeBody(req, &body); err != nil {
		return err
	}
	rec, err := r.svc.ConfirmRecognition(req.Context(), domain.RecordID(chi.URLParam(req, "id")), body.Recognized)
	if err != nil {
		return err
	}
	return writeJSON(w, recordResponse{Record: rec})
}

// POST /api/evidence/{id}/rerun
func (r *Router) handleRerun(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Instructions string `json:"instructions"`
	}
	if err := decodeBody(req, &body); err != nil {
		return err
	}
	rec, warn, err := r.svc.Rerun(req.Context(), domain.RecordID(chi.URLParam(req, "id")), body.Instructions)
	if err != nil {
		return err
	}
	return writeJSON(w, recordResponse{Record: rec, Warning: warn})
}

// POST /api/evidence/{id}/delete
// Body: {"secret": "..."}
func (r *Router) handleEvidenceDelete(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Secret string `json:"secret"`
	}
	if err := decodeBody(req, &body); err != nil {
		return err
	}
	if err := r.svc.DeleteRecord(req.Context(), domain.RecordID(chi.URLParam(req, "id")), body.Secret); err != nil {
		return err
	}
	return writeJSON(w, map[string]string{"status": "deleted"})
}

// POST /api/cases
// Body: {"memberIds": [...], "location": "...", "instructions": "..."}
func (r *Router) handleCaseCreate(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		MemberIDs    []string `json:"memberIds"`
		Location     string   `json:"location"`
		Instructions string   `json:"instructions"`
	}
	if err := decodeBody(req, &body); err != nil {
		return err
	}
	ids := make([]domain.RecordID, 0, len(body.MemberIDs))
	for _, id := range body.MemberIDs {
		ids = append(ids, domain.RecordID(id))
	}
	c, warn, err := r.svc.CreateCase(req.Context(), ids, body.Location, body.Instructions)
	if err != nil {
		return err
	}
	return writeJSON(w, caseResponse{Case: c, Warning: warn})
}

// GET /api/cases
func (r *Router) handleCaseList(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, r.svc.CasesList())
}

// GET /api/cases/{id}
func (r *Router) handleCaseGet(w http.ResponseWriter, req *http.Request) error {
	c, err := r.svc.CaseByID(domain.CaseID(chi.URLParam(req, "id")))
	if err != nil {
		return err
	}
	return writeJSON(w, c)
}

// POST /api/cases/{id}/result
// Body: {"result": {...}}, the user-edited unified result.
func (r *Router) handleCaseResult(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Result *domain.AnalysisResult `json:"result"`
	}
	if err := decodeBody(req, &body); err != nil {
		return err
	}
	c, warn, err := r.svc.UpdateCase(req.Context(), domain.CaseID(chi.URLParam(req, "id")), body.Result)
	if err != nil {
		return err
	}
	return writeJSON(w, caseResponse{Case: c, Warning: warn})
}

// POST /api/cases/{id}/rerun
// Body: {"memberIds": [...], "instructions": "..."}. memberIds replace the
// set wholesale; empty keeps the current members.
func (r *Router) handleCaseRerun(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		MemberIDs    []string `json:"memberIds"`
		Instructions string   `json:"instructions"`
	}
	if err := decodeBody(req, &body); err != nil {
		return err
	}
	ids := make([]domain.RecordID, 0, len(body.MemberIDs))
	for _, id := range body.MemberIDs {
		ids = append(ids, domain.RecordID(id))
	}
	c, warn, err := r.svc.RerunCase(req.Context(), domain.CaseID(chi.URLParam(req, "id")), ids, body.Instructions)
	if err != nil {
		return err
	}
	return writeJSON(w, caseResponse{Case: c, Warning: warn})
}

// POST /api/cases/{id}/delete
func (r *Router) handleCaseDelete(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Secret string `json:"secret"`
	}
	if err := decodeBody(req, &body); err != nil {
		return err
	}
	if err := r.svc.DeleteCase(req.Context(), domain.CaseID(chi.URLParam(req, "id")), body.Secret); err != nil {
		return err
	}
	return writeJSON(w, map[string]string{"status": "deleted"})
}

// POST /api/storage/evidence-rename
// Body: {"oldName": "...", "newName": "...", "kind": "asset|report", "secret": "..."}
func (r *Router) handleRename(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		OldName string `json:"oldName"`
		NewName string `json:"newName"`
		Kind    string `json:"kind"`
		Secret  string `json:"secret"`
	}
	if err := decodeBody(req, &body); err != nil {
		return err
	}
	res, err := r.svc.RenameStored(body.OldName, body.NewName, kindFrom(body.Kind), body.Secret)
	if err != nil {
		return err
	}
	return writeJSON(w, res)
}

// POST /api/storage/evidence-delete
// Body: {"name": "...", "kind": "asset|report", "secret": "..."}
func (r *Router) handleStorageDelete(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Name   string `json:"name"`
		Kind   string `json:"kind"`
		Secret string `json:"secret"`
	}
	if err := decodeBody(req, &body); err != nil {
		return err
	}
	deleted, err := r.svc.DeleteStored(body.Name, kindFrom(body.Kind), body.Secret)
	if err != nil {
		return err
	}
	return writeJSON(w, map[string]any{"deleted": deleted})
}

// POST /api/storage/reveal
// Body: {"relativePath": "..."} or {"name": "..."}
func (r *Router) handleReveal(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		RelativePath string `json:"relativePath"`
		Name         string `json:"name"`
	}
	if err := decodeBody(req, &body); err != nil {
		return err
	}
	var abs string
	switch {
	case body.RelativePath != "":
		p, err := r.vault.ResolveRelative(body.RelativePath)
		if err != nil {
			return err
		}
		abs = p
	case body.Name != "":
		loc, err := r.vault.Locate(body.Name)
		if err != nil {
			return err
		}
		abs = loc.Path
	default:
		return fmt.Errorf("%w: relativePath or name is required", domain.ErrInvalidArgument)
	}
	if err := r.vault.Reveal(abs); err != nil {
		return err
	}
	return writeJSON(w, map[string]string{"status": "revealed"})
}

// GET /api/storage/file/{name}
func (r *Router) handleServeFile(w http.ResponseWriter, req *http.Request) error {
	path, contentType, err := r.vault.Open(chi.URLParam(req, "name"))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", contentType)
	http.ServeFile(w, req, path)
	return nil
}

// POST /api/storage/profile
// Body: {"name": "...", "details": "...", "enhancedDetails": "...",
//        "referenceImage": "<base64>", "imageExt": ".png"}
func (r *Router) handleProfileSave(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Name            string `json:"name"`
		Details         string `json:"details"`
		EnhancedDetails string `json:"enhancedDetails"`
		ReferenceImage  string `json:"referenceImage"`
		ImageExt        string `json:"imageExt"`
	}
	if err := decodeBody(req, &body); err != nil {
		return err
	}
	if body.Name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrInvalidArgument)
	}
	var img []byte
	if body.ReferenceImage != "" {
		decoded, err := base64.StdEncoding.DecodeString(body.ReferenceImage)
		if err != nil {
			return fmt.Errorf("%w: referenceImage is not valid base64", domain.ErrInvalidArgument)
		}
		img = decoded
	}
	rel, err := r.vault.SaveProfile(domain.PersonProfile{
		Name:            body.Name,
		Details:         body.Details,
		EnhancedDetails: body.EnhancedDetails,
	}, img, body.ImageExt)
	if err != nil {
		return err
	}
	return writeJSON(w, map[string]string{"relativePath": rel})
}

// GET /api/storage/profiles
func (r *Router) handleProfileList(w http.ResponseWriter, req *http.Request) error {
	profiles, err := r.vault.ListProfiles()
	if err != nil {
		return err
	}
	if profiles == nil {
		profiles = []domain.PersonProfile{}
	}
	return writeJSON(w, profiles)
}

// POST /api/storage/profile-delete
// Body: {"name": "..."}
func (r *Router) handleProfileDelete(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(req, &body); err != nil {
		return err
	}
	if err := r.vault.DeleteProfile(body.Name); err != nil {
		return err
	}
	return writeJSON(w, map[string]string{"status": "deleted"})
}

// POST /api/storage/testimony
// Body: {"personName": "...", "text": "...", "summary": "..."}
func (r *Router) handleTestimony(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		PersonName string `json:"personName"`
		Text       string `json:"text"`
		Summary    string `json:"summary"`
	}
	if err := decodeBody(req, &body); err != nil {
		return err
	}
	if body.Text == "" {
		return fmt.Errorf("%w: text is required", domain.ErrInvalidArgument)
	}
	saved, err := r.vault.SaveTestimony(vault.TestimonyInput{
		PersonName: body.PersonName,
		Text:       body.Text,
		Summary:    body.Summary,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, saved)
}

func kindFrom(s string) vault.Kind {
	switch s {
	case "asset":
		return vault.KindAsset
	case "report":
		return vault.KindReport
	default:
		return vault.KindAuto
	}
}
