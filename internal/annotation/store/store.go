package store

import (
	"strings"
	"sync"
	"time"

	"marginalia/internal/annotation/model"

	"github.com/google/uuid"
)

// Store is the canonical in-process home of all annotation records.
// It is shared state: a write from one caller is visible to every other
// caller on the next read, last write wins, no isolation between
// sessions. Mutations notify subscribed observers after the change has
// committed and the internal lock has been released, so an observer may
// itself mutate the store without deadlocking.
type Store struct {
	mu          sync.Mutex
	records     []*model.Annotation // insertion order
	byID        map[string]*model.Annotation
	observers   []observer
	nextObsID   int
	lastCreated time.Time
	now         func() time.Time
}

type observer struct {
	id int
	fn func()
}

func New() *Store {
	return &Store{
		byID: make(map[string]*model.Annotation),
		now:  time.Now,
	}
}

// NewWithClock is New with an injected clock, for tests.
func NewWithClock(now func() time.Time) *Store {
	s := New()
	s.now = now
	return s
}

// Create assigns an ID and CreatedAt to the record, appends it and
// returns the finalized copy. CreatedAt is monotonically non-decreasing
// across creations even if the wall clock steps backwards.
func (s *Store) Create(a model.Annotation) model.Annotation {
	s.mu.Lock()
	a.ID = uuid.NewString()
	ts := s.now()
	if ts.Before(s.lastCreated) {
		ts = s.lastCreated
	}
	s.lastCreated = ts
	a.CreatedAt = ts

	rec := a.Clone()
	s.records = append(s.records, &rec)
	s.byID[rec.ID] = &rec
	s.mu.Unlock()

	s.notify()
	return a
}

// Seed loads already-finalized records (from persistence) without
// assigning IDs and without notifying observers.
func (s *Store) Seed(records []model.Annotation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range records {
		rec := records[i].Clone()
		s.records = append(s.records, &rec)
		s.byID[rec.ID] = &rec
		if rec.CreatedAt.After(s.lastCreated) {
			s.lastCreated = rec.CreatedAt
		}
	}
}

// Get returns a copy of the record with the given id.
func (s *Store) Get(id string) (model.Annotation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return model.Annotation{}, false
	}
	return rec.Clone(), true
}

// GetByDocument returns every record anchored to the given document URL,
// in insertion order.
func (s *Store) GetByDocument(documentURL string) []model.Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Annotation
	for _, rec := range s.records {
		if rec.DocumentURL == documentURL {
			out = append(out, rec.Clone())
		}
	}
	return out
}

// GetAll returns every record regardless of document, in insertion order.
// The review scheduler operates on this global view.
func (s *Store) GetAll() []model.Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Annotation, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	return out
}

// Update merges the non-nil fields of p into the record with the given
// id. Unknown ids are a silent no-op; the return value reports whether a
// record was touched. Difficulty is clamped into its domain on write.
func (s *Store) Update(id string, p model.Patch) bool {
	s.mu.Lock()
	rec, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if p.DocumentURL != nil {
		rec.DocumentURL = *p.DocumentURL
	}
	if p.Text != nil {
		rec.Text = *p.Text
	}
	if p.Color != nil {
		rec.Color = *p.Color
	}
	if p.ColorName != nil {
		rec.ColorName = *p.ColorName
	}
	if p.Note != nil {
		rec.Note = *p.Note
	}
	if p.Image != nil {
		rec.Image = *p.Image
	}
	if p.Tags != nil {
		rec.Tags = append([]string(nil), p.Tags...)
	}
	if p.Front != nil {
		rec.Front = *p.Front
	}
	if p.Back != nil {
		rec.Back = *p.Back
	}
	if p.FrontImage != nil {
		rec.FrontImage = *p.FrontImage
	}
	if p.BackImage != nil {
		rec.BackImage = *p.BackImage
	}
	if p.Difficulty != nil {
		d := model.ClampDifficulty(*p.Difficulty)
		rec.Difficulty = &d
	}
	if p.NextReviewDate != nil {
		t := *p.NextReviewDate
		rec.NextReviewDate = &t
	}
	if p.Category != nil {
		rec.Category = *p.Category
	}
	s.mu.Unlock()

	s.notify()
	return true
}

// Delete removes the record with the given id. Deleting an unknown id is
// a no-op and does not notify.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	if _, ok := s.byID[id]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.byID, id)
	for i, rec := range s.records {
		if rec.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.notify()
	return true
}

// Subscribe registers an observer invoked after every mutation. The
// notification carries no payload; observers re-read whatever they care
// about. The returned function unsubscribes.
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextObsID
	s.nextObsID++
	s.observers = append(s.observers, observer{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, o := range s.observers {
			if o.id == id {
				s.observers = append(s.observers[:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) notify() {
	s.mu.Lock()
	obs := make([]func(), len(s.observers))
	for i, o := range s.observers {
		obs[i] = o.fn
	}
	s.mu.Unlock()

	// Dispatch outside the lock so observers can mutate the store.
	for _, fn := range obs {
		fn()
	}
}

// Search returns the records whose text, note, color name, front or back
// contains the query, case-insensitively. An empty query matches
// everything. Pure helper: operates on the given slice, not the store.
func Search(records []model.Annotation, query string) []model.Annotation {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return records
	}
	var out []model.Annotation
	for _, rec := range records {
		haystack := strings.ToLower(rec.Text + " " + rec.Note + " " + rec.ColorName + " " + rec.Front + " " + rec.Back)
		if strings.Contains(haystack, q) {
			out = append(out, rec)
		}
	}
	return out
}

// FilterByType keeps records of the given type, preserving relative
// order. The type "all" is a pass-through.
func FilterByType(records []model.Annotation, typ string) []model.Annotation {
	if typ == "all" || typ == "" {
		return records
	}
	var out []model.Annotation
	for _, rec := range records {
		if rec.Type == typ {
			out = append(out, rec)
		}
	}
	return out
}
