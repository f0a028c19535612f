// Package export turns a query result into a portable download. It is a
// pure read-side projection; the store is never touched.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"marginalia/internal/annotation/model"

	"gopkg.in/yaml.v3"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var ErrUnknownFormat = errors.New("export: unknown format")

// record is the portable shape. Empty optional fields are omitted in both
// encodings so exports stay readable.
type record struct {
	ID             string     `json:"id" yaml:"id"`
	PaperID        string     `json:"paper_id" yaml:"paper_id"`
	DocumentURL    string     `json:"document_url" yaml:"document_url"`
	Type           string     `json:"type" yaml:"type"`
	Text           string     `json:"text,omitempty" yaml:"text,omitempty"`
	Color          string     `json:"color,omitempty" yaml:"color,omitempty"`
	ColorName      string     `json:"color_name,omitempty" yaml:"color_name,omitempty"`
	Note           string     `json:"note,omitempty" yaml:"note,omitempty"`
	Image          string     `json:"image,omitempty" yaml:"image,omitempty"`
	Tags           []string   `json:"tags,omitempty" yaml:"tags,omitempty"`
	CreatedAt      time.Time  `json:"created_at" yaml:"created_at"`
	Front          string     `json:"front,omitempty" yaml:"front,omitempty"`
	Back           string     `json:"back,omitempty" yaml:"back,omitempty"`
	FrontImage     string     `json:"front_image,omitempty" yaml:"front_image,omitempty"`
	BackImage      string     `json:"back_image,omitempty" yaml:"back_image,omitempty"`
	Difficulty     *float64   `json:"difficulty,omitempty" yaml:"difficulty,omitempty"`
	NextReviewDate *time.Time `json:"next_review_date,omitempty" yaml:"next_review_date,omitempty"`
	Category       string     `json:"category,omitempty" yaml:"category,omitempty"`
}

// Write serializes the records to w in the given format.
func Write(w io.Writer, records []model.Annotation, format string) error {
	out := make([]record, 0, len(records))
	for _, a := range records {
		out = append(out, record{
			ID:             a.ID,
			PaperID:        a.PaperID,
			DocumentURL:    a.DocumentURL,
			Type:           a.Type,
			Text:           a.Text,
			Color:          a.Color,
			ColorName:      a.ColorName,
			Note:           a.Note,
			Image:          a.Image,
			Tags:           a.Tags,
			CreatedAt:      a.CreatedAt,
			Front:          a.Front,
			Back:           a.Back,
			FrontImage:     a.FrontImage,
			BackImage:      a.BackImage,
			Difficulty:     a.Difficulty,
			NextReviewDate: a.NextReviewDate,
			Category:       a.Category,
		})
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(out); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// ContentType returns the MIME type for a supported format.
func ContentType(format string) string {
	if format == FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}
