package review

import (
	"fmt"
	"sort"
	"time"

	"marginalia/internal/annotation/model"
)

// retryIntervalDays is the intended sub-day retry interval for a failed
// recall. Scheduling is calendar-day arithmetic, so the fraction
// truncates and the card stays due the same day.
const retryIntervalDays = 0.25

// CardStore is the slice of the annotation store the scheduler needs.
// The scheduler keeps no state of its own between calls; everything it
// computes is written back through UpdateCard.
type CardStore interface {
	GetAll() []model.Annotation
	UpdateCard(id string, p model.Patch) bool
}

// Scheduler orders due flashcards and updates difficulty and next review
// date from graded review outcomes.
type Scheduler struct {
	cards CardStore
	now   func() time.Time
}

func NewScheduler(cards CardStore) *Scheduler {
	return &Scheduler{cards: cards, now: time.Now}
}

// DueQueue returns every flashcard across all documents, ordered by
// ascending next review date. Cards that have never been scheduled sort
// first, ahead of any dated card; ties keep insertion order.
func (s *Scheduler) DueQueue() []model.Annotation {
	var queue []model.Annotation
	for _, a := range s.cards.GetAll() {
		if a.IsFlashcard() {
			queue = append(queue, a)
		}
	}
	sort.SliceStable(queue, func(i, j int) bool {
		a, b := queue[i].NextReviewDate, queue[j].NextReviewDate
		if a == nil {
			return b != nil
		}
		if b == nil {
			return false
		}
		return a.Before(*b)
	})
	return queue
}

// Outcome is the result of grading one card.
type Outcome struct {
	Card         model.Annotation `json:"card"`
	Quality      Quality          `json:"quality"`
	Correct      bool             `json:"correct"`
	IntervalDays float64          `json:"interval_days"`
}

// Grade applies a recall grade to the flashcard with the given id.
// A card graded for the first time reads as difficulty 2.5. The updated
// difficulty (clamped to [1, 5]) and next review date are written back
// through the store before Grade returns.
//
// An out-of-range quality is rejected, never clamped; only the derived
// difficulty is clamped.
func (s *Scheduler) Grade(id string, quality Quality) (Outcome, error) {
	if !quality.IsValid() {
		return Outcome{}, fmt.Errorf("%w: got %d", ErrInvalidQuality, int(quality))
	}

	card, ok := s.find(id)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrCardNotFound, id)
	}
	if !card.IsFlashcard() {
		return Outcome{}, fmt.Errorf("%w: %s is a %s", ErrNotFlashcard, id, card.Type)
	}

	old := model.DefaultDifficulty
	if card.Difficulty != nil {
		old = *card.Difficulty
	}
	delta := 0.1 - float64(5-int(quality))*0.08
	difficulty := model.ClampDifficulty(old + delta)

	var intervalDays float64
	if quality.Correct() {
		switch {
		case difficulty < 2:
			intervalDays = 1
		case difficulty < 3:
			intervalDays = 3
		case difficulty < 4:
			intervalDays = 7
		default:
			intervalDays = 14
		}
	} else {
		intervalDays = retryIntervalDays
	}

	next := s.now().AddDate(0, 0, int(intervalDays))

	card.Difficulty = &difficulty
	card.NextReviewDate = &next
	s.cards.UpdateCard(id, model.Patch{Difficulty: &difficulty, NextReviewDate: &next})

	return Outcome{
		Card:         card,
		Quality:      quality,
		Correct:      quality.Correct(),
		IntervalDays: intervalDays,
	}, nil
}

func (s *Scheduler) find(id string) (model.Annotation, bool) {
	for _, a := range s.cards.GetAll() {
		if a.ID == id {
			return a, true
		}
	}
	return model.Annotation{}, false
}
