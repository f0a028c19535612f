package model

import "time"

// Annotation types. Anything else is rejected at creation.
const (
	TypeHighlight = "highlight"
	TypeNote      = "note"
	TypeFlashcard = "flashcard"
	TypeImageNote = "image-note"
)

// Difficulty bounds for flashcards. A card with no stored difficulty
// reads as DefaultDifficulty at grading time.
const (
	MinDifficulty     = 1.0
	MaxDifficulty     = 5.0
	DefaultDifficulty = 2.5
)

// Annotation is a study artifact anchored to a document. Which optional
// fields are meaningful depends on Type: highlights carry Text and a color,
// notes carry Note, image-notes carry Image, flashcards carry Front/Back
// plus scheduling state.
type Annotation struct {
	ID          string    `json:"id"`
	PaperID     string    `json:"paper_id"`
	DocumentURL string    `json:"document_url"`
	Type        string    `json:"type"`
	Text        string    `json:"text,omitempty"`
	Color       string    `json:"color,omitempty"`
	ColorName   string    `json:"color_name,omitempty"`
	Note        string    `json:"note,omitempty"`
	Image       string    `json:"image,omitempty"` // data URL
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	// Flashcard fields.
	Front          string     `json:"front,omitempty"`
	Back           string     `json:"back,omitempty"`
	FrontImage     string     `json:"front_image,omitempty"`
	BackImage      string     `json:"back_image,omitempty"`
	Difficulty     *float64   `json:"difficulty,omitempty"`       // nil until first grading
	NextReviewDate *time.Time `json:"next_review_date,omitempty"` // nil = due now
	Category       string     `json:"category,omitempty"`
}

// IsFlashcard reports whether the record participates in review scheduling.
func (a Annotation) IsFlashcard() bool {
	return a.Type == TypeFlashcard
}

// Clone returns a copy that shares no mutable state with the original.
func (a Annotation) Clone() Annotation {
	out := a
	if a.Tags != nil {
		out.Tags = append([]string(nil), a.Tags...)
	}
	if a.Difficulty != nil {
		v := *a.Difficulty
		out.Difficulty = &v
	}
	if a.NextReviewDate != nil {
		v := *a.NextReviewDate
		out.NextReviewDate = &v
	}
	return out
}

// ClampDifficulty forces d into [MinDifficulty, MaxDifficulty].
func ClampDifficulty(d float64) float64 {
	if d < MinDifficulty {
		return MinDifficulty
	}
	if d > MaxDifficulty {
		return MaxDifficulty
	}
	return d
}

// Patch is a partial update. Nil fields are left untouched; ID, Type,
// PaperID and CreatedAt are not patchable. A JSON body decodes absent
// keys to nil, so it doubles as the update request shape.
type Patch struct {
	DocumentURL    *string    `json:"document_url"`
	Text           *string    `json:"text"`
	Color          *string    `json:"color"`
	ColorName      *string    `json:"color_name"`
	Note           *string    `json:"note"`
	Image          *string    `json:"image"`
	Tags           []string   `json:"tags"`
	Front          *string    `json:"front"`
	Back           *string    `json:"back"`
	FrontImage     *string    `json:"front_image"`
	BackImage      *string    `json:"back_image"`
	Difficulty     *float64   `json:"difficulty"`
	NextReviewDate *time.Time `json:"next_review_date"`
	Category       *string    `json:"category"`
}

// CreateRequest is what collaborators (viewer, screenshot tool, card
// generator) send to create an annotation. ID and CreatedAt are assigned
// by the store.
type CreateRequest struct {
	PaperID     string   `json:"paper_id"`
	DocumentURL string   `json:"document_url"`
	Type        string   `json:"type"`
	Text        string   `json:"text"`
	Color       string   `json:"color"`
	ColorName   string   `json:"color_name"`
	Note        string   `json:"note"`
	Image       string   `json:"image"`
	Tags        []string `json:"tags"`

	Front      string   `json:"front"`
	Back       string   `json:"back"`
	FrontImage string   `json:"front_image"`
	BackImage  string   `json:"back_image"`
	Difficulty *float64 `json:"difficulty"`
	Category   string   `json:"category"`
}

// GradeRequest grades a single flashcard during a review session.
type GradeRequest struct {
	AnnotationID string `json:"annotation_id"`
	Quality      int    `json:"quality"`
}
