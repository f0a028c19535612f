package review

import "errors"

// Sentinel errors for the review package. Check with errors.Is.
var (
	ErrInvalidQuality = errors.New("review: quality rating out of range 1..5")
	ErrCardNotFound   = errors.New("review: no annotation with that id")
	ErrNotFlashcard   = errors.New("review: annotation is not a flashcard")
)
