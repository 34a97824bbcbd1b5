package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/PeacockIllustrated/project-manager/internal/store"
	"github.com/PeacockIllustrated/project-manager/internal/util"
)

const maxUploadBytes = 32 << 20

type HTTPServer struct {
	coordinator *Coordinator
	corsOrigin  string
}

func NewHTTPServer(coordinator *Coordinator, corsOrigin string) *HTTPServer {
	return &HTTPServer{coordinator: coordinator, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		state := s.coordinator.State()
		statusCode := http.StatusOK
		if state != StateReady {
			statusCode = http.StatusServiceUnavailable
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":      state == StateReady,
			"status":  state.String(),
			"overlay": s.coordinator.OverlayEnabled(),
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/overlay" {
		var body struct {
			Enabled bool `json:"enabled"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		s.coordinator.SetOverlay(body.Enabled)
		writeJSON(w, http.StatusOK, map[string]any{"enabled": body.Enabled})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/reload" {
		if err := s.coordinator.Reload(r.Context()); err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"status": s.coordinator.State().String()})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/reset" {
		if err := s.coordinator.Reset(r.Context()); err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/invoices/extract" {
		s.handleExtractInvoice(w, r)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || len(parts) > 4 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	collection := store.Collection(parts[1])
	if !collection.Valid() {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	id := ""
	if len(parts) >= 3 {
		id = parts[2]
	}

	if len(parts) == 4 {
		if r.Method == http.MethodGet && collection == store.Projects && parts[3] == "tasks" {
			view, err := s.coordinator.ProjectTasks(id)
			if err != nil {
				s.writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, view)
			return
		}
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	if r.Method == http.MethodGet && id == "" {
		items, err := s.coordinator.Read(collection)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
		return
	}

	c := s.coordinator
	switch collection {
	case store.Projects:
		serveEntity(s, w, r, id, entityRoutes[store.Project]{create: c.CreateProject, update: c.UpdateProject, remove: c.DeleteProject})
	case store.Tasks:
		serveEntity(s, w, r, id, entityRoutes[store.Task]{create: c.CreateTask, update: c.UpdateTask, remove: c.DeleteTask})
	case store.Staff:
		serveEntity(s, w, r, id, entityRoutes[store.StaffMember]{create: c.CreateStaff, update: c.UpdateStaff, remove: c.DeleteStaff})
	case store.Costs:
		serveEntity(s, w, r, id, entityRoutes[store.CostItem]{create: c.CreateCost, update: c.UpdateCost, remove: c.DeleteCost})
	case store.ChangeRequests:
		serveEntity(s, w, r, id, entityRoutes[store.ChangeRequest]{create: c.AddChangeRequest})
	case store.Documents:
		s.handleDocuments(w, r, id)
	}
}

type entityRoutes[E store.Entity[E]] struct {
	create func(context.Context, E) (E, error)
	update func(context.Context, E) error
	remove func(context.Context, string) error
}

func serveEntity[E store.Entity[E]](s *HTTPServer, w http.ResponseWriter, r *http.Request, id string, routes entityRoutes[E]) {
	switch {
	case r.Method == http.MethodPost && id == "" && routes.create != nil:
		var body E
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		created, err := routes.create(r.Context(), body)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	case r.Method == http.MethodPut && routes.update != nil:
		var body E
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if id != "" {
			body = body.WithID(id)
		}
		if err := routes.update(r.Context(), body); err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, body)

	case r.Method == http.MethodDelete && id != "" && routes.remove != nil:
		if err := routes.remove(r.Context(), id); err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleDocuments(w http.ResponseWriter, r *http.Request, documentID string) {
	switch {
	case r.Method == http.MethodPost && documentID == "":
		upload, err := readUpload(w, r, "file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		doc, err := s.coordinator.UploadDocument(r.Context(), r.FormValue("projectId"), upload.name, upload.contentType, upload.data)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, doc)

	case r.Method == http.MethodDelete && documentID != "":
		if err := s.coordinator.DeleteDocument(r.Context(), documentID); err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleExtractInvoice(w http.ResponseWriter, r *http.Request) {
	upload, err := readUpload(w, r, "image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	draft, err := s.coordinator.ExtractInvoice(r.Context(), upload.data, upload.contentType, r.FormValue("projectId"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

type uploadedFile struct {
	name        string
	contentType string
	data        []byte
}

func readUpload(w http.ResponseWriter, r *http.Request, field string) (uploadedFile, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return uploadedFile{}, fmt.Errorf("invalid multipart body")
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return uploadedFile{}, fmt.Errorf("%s is required", field)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return uploadedFile{}, fmt.Errorf("read %s: %w", field, err)
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return uploadedFile{name: header.Filename, contentType: contentType, data: data}, nil
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = util.NewID("req")
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", writer.status).
			Int64("duration_ms", time.Since(started).Milliseconds()).
			Msg("http request")
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func (s *HTTPServer) writeDomainError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

var kindStatus = []struct {
	kind   error
	status int
}{
	{ErrValidation, http.StatusBadRequest},
	{ErrReadOnly, http.StatusConflict},
	{ErrNotFound, http.StatusNotFound},
	{ErrNotReady, http.StatusServiceUnavailable},
	{ErrPartialCascade, http.StatusBadGateway},
	{ErrExtraction, http.StatusBadGateway},
	{ErrUnsupported, http.StatusNotImplemented},
	{ErrPersistence, http.StatusInternalServerError},
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		for _, ks := range kindStatus {
			if errors.Is(domainErr.Kind, ks.kind) {
				return ks.status, domainErr.Code, domainErr.Message, domainErr.Details
			}
		}
		return http.StatusInternalServerError, domainErr.Code, domainErr.Message, domainErr.Details
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
