package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"clinsight/internal/domain"
	"clinsight/internal/port"
)

type analysisRepo struct {
	db *sqlx.DB
}

// NewAnalysisRepo creates a new PostgreSQL-backed AnalysisRepository.
func NewAnalysisRepo(db *sqlx.DB) port.AnalysisRepository {
	return &analysisRepo{db: db}
}

// analysisRow mirrors the analyses table; list-valued fields are JSONB.
type analysisRow struct {
	domain.AnalysisRecord
	SectionsJSON    []byte `db:"sections"`
	RefsJSON        []byte `db:"refs"`
	RareDiseaseJSON []byte `db:"rare_disease"`
	ImagesJSON      []byte `db:"images"`
	WarningsJSON    []byte `db:"warnings"`
	ModelsJSON      []byte `db:"models"`
}

const analysisColumns = `id, user_id, title, case_text, transcript, sections, refs, rare_disease,
	images, warnings, models, had_audio, had_images, created_at`

func (row *analysisRow) toDomain() (*domain.AnalysisRecord, error) {
	rec := row.AnalysisRecord
	decode := []struct {
		name string
		raw  []byte
		dst  interface{}
	}{
		{"sections", row.SectionsJSON, &rec.Sections},
		{"refs", row.RefsJSON, &rec.References},
		{"images", row.ImagesJSON, &rec.Images},
		{"warnings", row.WarningsJSON, &rec.Warnings},
		{"models", row.ModelsJSON, &rec.Models},
	}
	for _, d := range decode {
		if len(d.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(d.raw, d.dst); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", d.name, err)
		}
	}
	if len(row.RareDiseaseJSON) > 0 && string(row.RareDiseaseJSON) != "null" {
		var rd domain.RareDiseaseData
		if err := json.Unmarshal(row.RareDiseaseJSON, &rd); err != nil {
			return nil, fmt.Errorf("decoding rare_disease: %w", err)
		}
		rec.RareDisease = &rd
	}
	if rec.References == nil {
		rec.References = []domain.Reference{}
	}
	return &rec, nil
}

func (r *analysisRepo) Create(ctx context.Context, record *domain.AnalysisRecord) error {
	sections, err := json.Marshal(record.Sections)
	if err != nil {
		return fmt.Errorf("analysisRepo.Create sections: %w", err)
	}
	refs := record.References
	if refs == nil {
		refs = []domain.Reference{}
	}
	refsJSON, _ := json.Marshal(refs)
	images := record.Images
	if images == nil {
		images = []domain.ImageDescriptor{}
	}
	imagesJSON, _ := json.Marshal(images)
	warnings := record.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, _ := json.Marshal(warnings)
	modelsJSON, _ := json.Marshal(record.Models)
	var rareJSON []byte
	if record.RareDisease != nil {
		rareJSON, _ = json.Marshal(record.RareDisease)
	}

	// ON CONFLICT makes a retried create with the same ID a no-op.
	query := `INSERT INTO analyses (` + analysisColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING`
	_, err = r.db.ExecContext(ctx, query,
		record.ID, record.UserID, record.Title, record.CaseText, record.Transcript,
		sections, refsJSON, rareJSON, imagesJSON, warningsJSON, modelsJSON,
		record.HadAudio, record.HadImages, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("analysisRepo.Create: %w", err)
	}
	return nil
}

func (r *analysisRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.AnalysisRecord, error) {
	var row analysisRow
	err := r.db.GetContext(ctx, &row,
		"SELECT "+analysisColumns+" FROM analyses WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("analysisRepo.GetByID: %w", err)
	}
	rec, err := row.toDomain()
	if err != nil {
		return nil, fmt.Errorf("analysisRepo.GetByID: %w", err)
	}
	return rec, nil
}

func (r *analysisRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.AnalysisRecord, error) {
	var rows []analysisRow
	err := r.db.SelectContext(ctx, &rows,
		"SELECT "+analysisColumns+" FROM analyses WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2",
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("analysisRepo.ListByUser: %w", err)
	}
	out := make([]domain.AnalysisRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toDomain()
		if err != nil {
			return nil, fmt.Errorf("analysisRepo.ListByUser: %w", err)
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (r *analysisRepo) Delete(ctx context.Context, id uuid.UUID, requestingUserID string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM analyses WHERE id = $1 AND user_id = $2", id, requestingUserID)
	if err != nil {
		return fmt.Errorf("analysisRepo.Delete: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}

	// Nothing deleted: tell a missing record apart from someone else's.
	var owner string
	err = r.db.GetContext(ctx, &owner, "SELECT user_id FROM analyses WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("analysisRepo.Delete owner lookup: %w", err)
	}
	return domain.ErrForbidden
}
