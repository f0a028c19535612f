package service

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"marginalia/internal/annotation/model"
	"marginalia/internal/annotation/repository"
	"marginalia/internal/annotation/store"
	"marginalia/pkg/logger"
	"marginalia/socket"
)

// ValidationError rejects a creation request that violates the type
// contract, naming the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AnnotationService orchestrates the store, persistence and the change
// feed. The store stays the canonical state; the service tracks which ids
// are dirty and flushes them to Postgres in the background.
type AnnotationService struct {
	Store *store.Store
	Repo  *repository.AnnotationRepository
	Hub   *socket.Hub

	mu      sync.Mutex
	dirty   map[string]bool
	deleted map[string]bool
}

func NewAnnotationService(st *store.Store, repo *repository.AnnotationRepository, hub *socket.Hub) *AnnotationService {
	return &AnnotationService{
		Store:   st,
		Repo:    repo,
		Hub:     hub,
		dirty:   make(map[string]bool),
		deleted: make(map[string]bool),
	}
}

// Create validates the request, stores the record and announces it.
// Unknown types are rejected rather than passed through; a bad type would
// otherwise only surface at read time in unrelated components.
func (s *AnnotationService) Create(userID string, req model.CreateRequest) (model.Annotation, error) {
	if err := validate(req); err != nil {
		return model.Annotation{}, err
	}

	rec := model.Annotation{
		PaperID:     req.PaperID,
		DocumentURL: req.DocumentURL,
		Type:        req.Type,
		Text:        req.Text,
		Color:       req.Color,
		ColorName:   req.ColorName,
		Note:        req.Note,
		Image:       req.Image,
		Tags:        req.Tags,
		Front:       req.Front,
		Back:        req.Back,
		FrontImage:  req.FrontImage,
		BackImage:   req.BackImage,
		Category:    req.Category,
	}
	if req.Difficulty != nil {
		d := model.ClampDifficulty(*req.Difficulty)
		rec.Difficulty = &d
	}

	rec = s.Store.Create(rec)
	s.markDirty(rec.ID)
	s.announce(socket.CreatedType, userID, rec)
	return rec, nil
}

// List returns the annotations for one document, or all of them when the
// document URL is empty.
func (s *AnnotationService) List(documentURL string) []model.Annotation {
	if documentURL == "" {
		return s.Store.GetAll()
	}
	return s.Store.GetByDocument(documentURL)
}

// Search filters the whole collection by free-text query and type.
func (s *AnnotationService) Search(query, typ string) []model.Annotation {
	return store.FilterByType(store.Search(s.Store.GetAll(), query), typ)
}

// Update merges the patch into the record. An unknown id is a silent
// no-op: nothing is announced and nothing is flushed.
func (s *AnnotationService) Update(userID, id string, p model.Patch) {
	if !s.Store.Update(id, p) {
		return
	}
	s.markDirty(id)
	if rec, ok := s.Store.Get(id); ok {
		s.announce(socket.UpdatedType, userID, rec)
	}
}

// Delete removes the record. Deleting an unknown id is a no-op.
func (s *AnnotationService) Delete(userID, id string) {
	rec, ok := s.Store.Get(id)
	if !ok {
		return
	}
	s.Store.Delete(id)

	s.mu.Lock()
	delete(s.dirty, id)
	s.deleted[id] = true
	s.mu.Unlock()

	s.announce(socket.DeletedType, userID, rec)
}

// GetAll and UpdateCard make the service usable as the scheduler's card
// store, so regraded cards are dirty-tracked and announced like any other
// mutation.
func (s *AnnotationService) GetAll() []model.Annotation {
	return s.Store.GetAll()
}

func (s *AnnotationService) UpdateCard(id string, p model.Patch) bool {
	if !s.Store.Update(id, p) {
		return false
	}
	s.markDirty(id)
	if rec, ok := s.Store.Get(id); ok {
		s.announce(socket.UpdatedType, "", rec)
	}
	return true
}

func (s *AnnotationService) markDirty(id string) {
	s.mu.Lock()
	s.dirty[id] = true
	delete(s.deleted, id)
	s.mu.Unlock()
}

func (s *AnnotationService) announce(eventType, userID string, rec model.Annotation) {
	if s.Hub == nil {
		return
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling annotation %s for broadcast: %v", rec.ID, err)
		return
	}
	s.Hub.Broadcast <- socket.WSMessage{
		Type:        eventType,
		DocumentURL: rec.DocumentURL,
		UserID:      userID,
		Payload:     payload,
	}
}

// SaveWorker flushes dirty and deleted ids to Postgres every 10 seconds.
// Ids that fail to flush stay marked and are retried on the next tick.
func (s *AnnotationService) SaveWorker() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		s.Flush()
	}
}

// Flush performs one persistence pass.
func (s *AnnotationService) Flush() {
	s.mu.Lock()
	dirtyIDs := make([]string, 0, len(s.dirty))
	for id := range s.dirty {
		dirtyIDs = append(dirtyIDs, id)
		delete(s.dirty, id)
	}
	deletedIDs := make([]string, 0, len(s.deleted))
	for id := range s.deleted {
		deletedIDs = append(deletedIDs, id)
		delete(s.deleted, id)
	}
	s.mu.Unlock()

	for _, id := range dirtyIDs {
		rec, ok := s.Store.Get(id)
		if !ok {
			continue // deleted since it was marked
		}
		if err := s.Repo.Upsert(rec); err != nil {
			s.markDirty(id)
			continue
		}
	}

	for _, id := range deletedIDs {
		if err := s.Repo.Delete(id); err != nil {
			s.mu.Lock()
			s.deleted[id] = true
			s.mu.Unlock()
		}
	}

	if n := len(dirtyIDs) + len(deletedIDs); n > 0 {
		logger.Sugar.Infof("Flushed %d annotation change(s)", n)
	}
}

func validate(req model.CreateRequest) error {
	switch req.Type {
	case model.TypeHighlight:
		if req.Text == "" {
			return &ValidationError{Field: "text", Reason: "a highlight needs the selected passage"}
		}
	case model.TypeNote:
		// Text and note may both be empty; a note can be a bare color marker.
	case model.TypeImageNote:
		if req.Image == "" {
			return &ValidationError{Field: "image", Reason: "an image-note needs an image payload"}
		}
	case model.TypeFlashcard:
		if req.Front == "" && req.FrontImage == "" {
			return &ValidationError{Field: "front", Reason: "a flashcard needs a front side"}
		}
		if req.Back == "" && req.BackImage == "" {
			return &ValidationError{Field: "back", Reason: "a flashcard needs a back side"}
		}
	case "":
		return &ValidationError{Field: "type", Reason: "missing"}
	default:
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown annotation type %q", req.Type)}
	}
	return nil
}
