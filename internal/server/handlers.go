package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"pagegen/internal/audit"
	"pagegen/internal/components"
	"pagegen/internal/logging"
	"pagegen/internal/tasks"
	"pagegen/internal/types"
)

const maxJSONBody = 16 << 20

type selectComponentsRequest struct {
	PageRequest string `json:"pageRequest"`
}

type updateComponentMetadataRequest struct {
	Components []types.ComponentMetadata `json:"components"`
}

type generatePageRequest struct {
	PageRequest          string   `json:"pageRequest"`
	SelectedComponentIDs []string `json:"selectedComponentIds"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type auditRequest struct {
	HTML        string `json:"html"`
	TS          string `json:"ts"`
	CSS         string `json:"css"`
	UserRequest string `json:"user_request"`
}

// pageResponse is the payload of generate-page and chat.
type pageResponse struct {
	Status        string       `json:"status"`
	HTMLCode      string       `json:"html_code"`
	SCSSCode      string       `json:"scss_code"`
	TSCode        string       `json:"ts_code"`
	ComponentName string       `json:"component_name,omitempty"`
	PathName      string       `json:"path_name,omitempty"`
	Selector      string       `json:"selector,omitempty"`
	Message       string       `json:"message,omitempty"`
	Warnings      []string     `json:"warnings,omitempty"`
	Audit         audit.Result `json:"audit"`
}

type auditResponse struct {
	Status       string           `json:"status"`
	RefinedCode  types.CodeBundle `json:"refined_code"`
	AuditSummary *audit.Summary   `json:"audit_summary,omitempty"`
	Audit        audit.Result     `json:"audit"`
}

type taskResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return badRequest("Request body is required")
		}
		return badRequest(fmt.Sprintf("Invalid request body: %v", err))
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "API is running"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Workspace.Reset(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Session reset"})
}

func (s *Server) handleUploadAndAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if limit := s.cfg.Server.MaxUploadBytes; limit > 0 {
		if r.ContentLength > limit {
			writeError(w, &HTTPError{Status: http.StatusRequestEntityTooLarge, Detail: "Upload too large"})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	upload, err := receiveUpload(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer upload.Cleanup()

	if strings.TrimSpace(upload.PageRequest) == "" {
		writeError(w, badRequest("Page request is required"))
		return
	}
	if upload.Files == 0 {
		writeError(w, badRequest("No files uploaded"))
		return
	}

	if err := s.deps.Workspace.SavePageRequest(ctx, upload.PageRequest); err != nil {
		writeError(w, err)
		return
	}

	logging.Server("Analyzing %d uploaded files", upload.Files)
	metadata, err := s.deps.Analyzer.AnalyzeDir(ctx, upload.Dir)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(metadata) == 0 {
		writeError(w, &HTTPError{Status: http.StatusInternalServerError, Detail: "Failed to generate metadata"})
		return
	}
	if err := s.deps.Workspace.SaveComponents(ctx, metadata); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"components": metadata,
		"message":    fmt.Sprintf("Analyzed %d components successfully", len(metadata)),
	})
}

func (s *Server) handleSelectComponents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req selectComponentsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	pageRequest, err := s.pageRequestOrSaved(ctx, req.PageRequest)
	if err != nil {
		writeError(w, err)
		return
	}
	metadata, err := s.requireMetadata(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	sel := s.deps.Selector.Select(ctx, pageRequest, metadata)
	updated := components.ApplySelection(sel, metadata)
	if err := s.deps.Workspace.SaveComponents(ctx, updated); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":                 "success",
		"all_components":         updated,
		"selected_component_ids": sel.SelectedComponents,
		"reasoning":              sel.Reasoning,
		"selected_components":    requiredOnly(updated),
	})
}

func (s *Server) handleUpdateComponentMetadata(w http.ResponseWriter, r *http.Request) {
	var req updateComponentMetadataRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Components) == 0 {
		writeError(w, badRequest("Components list required"))
		return
	}
	if err := s.deps.Workspace.SaveComponents(r.Context(), req.Components); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": fmt.Sprintf("Successfully updated metadata for %d components", len(req.Components)),
	})
}

func (s *Server) handleGeneratePage(w http.ResponseWriter, r *http.Request) {
	job, err := s.prepareGenerate(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	resp, err := job(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGeneratePageTask(w http.ResponseWriter, r *http.Request) {
	job, err := s.prepareGenerate(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.startTask(w, "generate-page", job)
}

// prepareGenerate validates a generate-page request and returns the work
// to run, so validation errors surface before a task is created.
func (s *Server) prepareGenerate(w http.ResponseWriter, r *http.Request) (func(context.Context) (any, error), error) {
	ctx := r.Context()
	var req generatePageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return nil, err
	}
	pageRequest, err := s.pageRequestOrSaved(ctx, req.PageRequest)
	if err != nil {
		return nil, err
	}
	metadata, err := s.requireMetadata(ctx)
	if err != nil {
		return nil, err
	}
	required := requiredOnly(metadata)

	return func(ctx context.Context) (any, error) {
		res, err := s.deps.Generator.Generate(ctx, pageRequest, required)
		if err != nil {
			return nil, err
		}
		return pageResponse{
			Status:        "success",
			HTMLCode:      res.Page.HTMLCode,
			SCSSCode:      res.Page.SCSSCode,
			TSCode:        res.Page.TSCode,
			ComponentName: res.Page.ComponentName,
			PathName:      res.Page.PathName,
			Selector:      res.Page.Selector,
			Warnings:      res.Warnings,
			Audit:         res.Audit,
		}, nil
	}, nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, badRequest("Message is required"))
		return
	}

	res, err := s.deps.Generator.Chat(r.Context(), req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageResponse{
		Status:   "success",
		HTMLCode: res.Page.HTMLCode,
		SCSSCode: res.Page.SCSSCode,
		TSCode:   res.Page.TSCode,
		Message:  "Successfully updated code",
		Audit:    res.Audit,
	})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	job, err := s.prepareAudit(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	resp, err := job(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAuditTask(w http.ResponseWriter, r *http.Request) {
	job, err := s.prepareAudit(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.startTask(w, "audit", job)
}

func (s *Server) prepareAudit(w http.ResponseWriter, r *http.Request) (func(context.Context) (any, error), error) {
	var req auditRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return nil, err
	}
	code := types.CodeBundle{HTML: req.HTML, CSS: req.CSS, TS: req.TS}
	if code.IsEmpty() {
		return nil, badRequest("Code is required")
	}
	request, err := s.userRequestOrSaved(r.Context(), req.UserRequest)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) (any, error) {
		res := s.deps.Generator.Audit(ctx, code, request)
		resp := auditResponse{Status: "success", RefinedCode: res.Code, Audit: res}
		if res.LastReport != nil {
			summary := res.LastReport.AuditSummary
			resp.AuditSummary = &summary
		}
		return resp, nil
	}, nil
}

func (s *Server) startTask(w http.ResponseWriter, kind string, job tasks.Func) {
	id := s.deps.Tasks.Run(kind, job)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "success",
		"task_id": id,
	})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.deps.Tasks.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskResponse{
		Status: string(task.Status),
		ID:     task.ID,
		Kind:   task.Kind,
		Result: task.Result,
		Error:  task.Error,
	})
}

func (s *Server) pageRequestOrSaved(ctx context.Context, given string) (string, error) {
	if strings.TrimSpace(given) != "" {
		return given, nil
	}
	saved, err := s.deps.Workspace.LoadPageRequest(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(saved) == "" {
		return "", badRequest("Page request is required")
	}
	return saved, nil
}

// userRequestOrSaved is the audit request, defaulting to the saved page
// request.
func (s *Server) userRequestOrSaved(ctx context.Context, given string) (string, error) {
	if strings.TrimSpace(given) != "" {
		return given, nil
	}
	saved, err := s.deps.Workspace.LoadPageRequest(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(saved) == "" {
		return "", badRequest("User request is required")
	}
	return saved, nil
}

func (s *Server) requireMetadata(ctx context.Context) ([]types.ComponentMetadata, error) {
	metadata, err := s.deps.Workspace.LoadComponents(ctx)
	if err != nil {
		return nil, err
	}
	if len(metadata) == 0 {
		return nil, badRequest("No metadata available")
	}
	return metadata, nil
}

func requiredOnly(all []types.ComponentMetadata) []types.ComponentMetadata {
	out := []types.ComponentMetadata{}
	for _, c := range all {
		if c.Required {
			out = append(out, c)
		}
	}
	return out
}
