package repository

import (
	"database/sql"

	"marginalia/internal/annotation/model"
	"marginalia/pkg/logger"

	"github.com/lib/pq"
)

type AnnotationRepository struct {
	DB *sql.DB
}

func NewAnnotationRepository(db *sql.DB) *AnnotationRepository {
	return &AnnotationRepository{DB: db}
}

// EnsureSchema creates the annotations table if it does not exist yet.
// One flat collection keyed by id; callers filter client-side, so no
// secondary indexes are required.
func (r *AnnotationRepository) EnsureSchema() error {
	_, err := r.DB.Exec(`
		CREATE TABLE IF NOT EXISTS annotations (
			id               TEXT PRIMARY KEY,
			paper_id         TEXT NOT NULL DEFAULT '',
			document_url     TEXT NOT NULL DEFAULT '',
			type             TEXT NOT NULL,
			text             TEXT NOT NULL DEFAULT '',
			color            TEXT NOT NULL DEFAULT '',
			color_name       TEXT NOT NULL DEFAULT '',
			note             TEXT NOT NULL DEFAULT '',
			image            TEXT NOT NULL DEFAULT '',
			tags             TEXT[] NOT NULL DEFAULT '{}',
			created_at       TIMESTAMPTZ NOT NULL,
			front            TEXT NOT NULL DEFAULT '',
			back             TEXT NOT NULL DEFAULT '',
			front_image      TEXT NOT NULL DEFAULT '',
			back_image       TEXT NOT NULL DEFAULT '',
			difficulty       DOUBLE PRECISION,
			next_review_date TIMESTAMPTZ,
			category         TEXT NOT NULL DEFAULT ''
		)`)
	if err != nil {
		logger.Sugar.Errorf("Failed to ensure annotations schema: %v", err)
	}
	return err
}

// LoadAll returns every persisted annotation in creation order, used to
// seed the in-memory store at startup.
func (r *AnnotationRepository) LoadAll() ([]model.Annotation, error) {
	rows, err := r.DB.Query(`
		SELECT id, paper_id, document_url, type, text, color, color_name, note, image, tags,
		       created_at, front, back, front_image, back_image, difficulty, next_review_date, category
		FROM annotations ORDER BY created_at ASC`)
	if err != nil {
		logger.Sugar.Errorf("Failed to load annotations: %v", err)
		return nil, err
	}
	defer rows.Close()

	var out []model.Annotation
	for rows.Next() {
		var a model.Annotation
		if err := rows.Scan(
			&a.ID, &a.PaperID, &a.DocumentURL, &a.Type, &a.Text, &a.Color, &a.ColorName,
			&a.Note, &a.Image, pq.Array(&a.Tags), &a.CreatedAt, &a.Front, &a.Back,
			&a.FrontImage, &a.BackImage, &a.Difficulty, &a.NextReviewDate, &a.Category,
		); err != nil {
			logger.Sugar.Errorf("Failed to scan annotation row: %v", err)
			continue
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Upsert writes the full record, creating it if new or replacing the
// stored row otherwise.
func (r *AnnotationRepository) Upsert(a model.Annotation) error {
	_, err := r.DB.Exec(`
		INSERT INTO annotations (id, paper_id, document_url, type, text, color, color_name, note, image, tags,
		                         created_at, front, back, front_image, back_image, difficulty, next_review_date, category)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			document_url = $3, text = $5, color = $6, color_name = $7, note = $8, image = $9, tags = $10,
			front = $12, back = $13, front_image = $14, back_image = $15,
			difficulty = $16, next_review_date = $17, category = $18`,
		a.ID, a.PaperID, a.DocumentURL, a.Type, a.Text, a.Color, a.ColorName, a.Note, a.Image,
		pq.Array(a.Tags), a.CreatedAt, a.Front, a.Back, a.FrontImage, a.BackImage,
		a.Difficulty, a.NextReviewDate, a.Category)
	if err != nil {
		logger.Sugar.Errorf("Failed to upsert annotation %s: %v", a.ID, err)
	}
	return err
}

func (r *AnnotationRepository) Delete(id string) error {
	_, err := r.DB.Exec("DELETE FROM annotations WHERE id = $1", id)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete annotation %s: %v", id, err)
	}
	return err
}
