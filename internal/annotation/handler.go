package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"marginalia/internal/annotation/model"
	"marginalia/internal/annotation/service"
	"marginalia/internal/export"
	"marginalia/internal/review"
	"marginalia/middleware"
	"marginalia/pkg/logger"
)

type AnnotationHandler struct {
	Service   *service.AnnotationService
	Scheduler *review.Scheduler
}

func NewAnnotationHandler(svc *service.AnnotationService, sched *review.Scheduler) *AnnotationHandler {
	return &AnnotationHandler{Service: svc, Scheduler: sched}
}

func (h *AnnotationHandler) CreateAnnotation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	userID := r.Context().Value(middleware.UserIDKey).(string)

	rec, err := h.Service.Create(userID, req)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Sugar.Errorf("Handler: Failed to create annotation: %v", err)
		http.Error(w, "Failed to create annotation", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

func (h *AnnotationHandler) GetAnnotations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	records := h.Service.List(r.URL.Query().Get("documentUrl"))
	if records == nil {
		records = []model.Annotation{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

func (h *AnnotationHandler) SearchAnnotations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	records := h.Service.Search(r.URL.Query().Get("q"), r.URL.Query().Get("type"))
	if records == nil {
		records = []model.Annotation{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

func (h *AnnotationHandler) ExportAnnotations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = export.FormatJSON
	}
	records := h.Service.Search(r.URL.Query().Get("q"), r.URL.Query().Get("type"))

	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", "attachment; filename=annotations."+format)
	if err := export.Write(w, records, format); err != nil {
		if errors.Is(err, export.ErrUnknownFormat) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Sugar.Errorf("Handler: Failed to export annotations: %v", err)
	}
}

func (h *AnnotationHandler) UpdateAnnotation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("annotationId")
	if id == "" {
		http.Error(w, "Missing annotationId parameter", http.StatusBadRequest)
		return
	}

	var patch model.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	userID := r.Context().Value(middleware.UserIDKey).(string)

	// Unknown ids are a silent no-op; callers re-read if they need
	// confirmation the merge happened.
	h.Service.Update(userID, id, patch)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Annotation updated"))
}

func (h *AnnotationHandler) DeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("annotationId")
	if id == "" {
		http.Error(w, "Missing annotationId parameter", http.StatusBadRequest)
		return
	}

	userID := r.Context().Value(middleware.UserIDKey).(string)

	h.Service.Delete(userID, id)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Annotation deleted"))
}

func (h *AnnotationHandler) GetReviewQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	queue := h.Scheduler.DueQueue()
	if queue == nil {
		queue = []model.Annotation{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(queue)
}

func (h *AnnotationHandler) GradeCard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.GradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AnnotationID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	outcome, err := h.Scheduler.Grade(req.AnnotationID, review.Quality(req.Quality))
	if err != nil {
		switch {
		case errors.Is(err, review.ErrCardNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, review.ErrInvalidQuality), errors.Is(err, review.ErrNotFlashcard):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			logger.Sugar.Errorf("Handler: Failed to grade card %s: %v", req.AnnotationID, err)
			http.Error(w, "Failed to grade card", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(outcome)
}
