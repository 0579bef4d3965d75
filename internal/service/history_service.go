package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"clinsight/internal/domain"
	"clinsight/internal/port"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// HistoryService reads and deletes a user's stored analyses.
type HistoryService interface {
	Get(ctx context.Context, userID string, id uuid.UUID) (*domain.AnalysisRecord, error)
	List(ctx context.Context, userID string, limit int) ([]domain.AnalysisRecord, error)
	Search(ctx context.Context, userID, term string, limit int) ([]domain.AnalysisRecord, error)
	Delete(ctx context.Context, userID string, id uuid.UUID) error
	ImageURL(ctx context.Context, userID string, id uuid.UUID, index int) (string, error)
}

type historyService struct {
	repo    port.AnalysisRepository
	storage port.ObjectStorage
}

// NewHistoryService creates a new HistoryService. storage may be nil.
func NewHistoryService(repo port.AnalysisRepository, storage port.ObjectStorage) HistoryService {
	return &historyService{repo: repo, storage: storage}
}

func (s *historyService) Get(ctx context.Context, userID string, id uuid.UUID) (*domain.AnalysisRecord, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("history.Get: %w", err)
	}
	if record.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return record, nil
}

func (s *historyService) List(ctx context.Context, userID string, limit int) ([]domain.AnalysisRecord, error) {
	records, err := s.repo.ListByUser(ctx, userID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("history.List: %w", err)
	}
	return records, nil
}

// Search filters the user's records by a case-insensitive substring of the
// title or case text. Up to maxHistoryLimit of the newest records are
// scanned; limit bounds the matches returned.
func (s *historyService) Search(ctx context.Context, userID, term string, limit int) ([]domain.AnalysisRecord, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return s.List(ctx, userID, limit)
	}
	records, err := s.repo.ListByUser(ctx, userID, maxHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("history.Search: %w", err)
	}
	limit = clampLimit(limit)
	matched := make([]domain.AnalysisRecord, 0, limit)
	for i := range records {
		if strings.Contains(strings.ToLower(records[i].Title), term) ||
			strings.Contains(strings.ToLower(records[i].CaseText), term) {
			matched = append(matched, records[i])
			if len(matched) == limit {
				break
			}
		}
	}
	return matched, nil
}

// Delete removes the record, then its stored images on a best-effort basis.
func (s *historyService) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("history.Delete: %w", err)
	}
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		return fmt.Errorf("history.Delete: %w", err)
	}

	if s.storage == nil {
		return nil
	}
	for _, img := range record.Images {
		if !img.Stored || img.StorageKey == "" {
			continue
		}
		if err := s.storage.Delete(ctx, img.StorageKey); err != nil {
			log.Warn().Err(err).Str("analysis_id", id.String()).Str("key", img.StorageKey).
				Msg("history.Delete: failed to remove image object")
		}
	}
	return nil
}

// ImageURL returns a presigned download URL for one attached image.
func (s *historyService) ImageURL(ctx context.Context, userID string, id uuid.UUID, index int) (string, error) {
	record, err := s.Get(ctx, userID, id)
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(record.Images) {
		return "", domain.ErrNotFound
	}
	img := record.Images[index]
	if !img.Stored || s.storage == nil {
		return "", fmt.Errorf("history.ImageURL: image %d was not stored: %w", index, domain.ErrNotFound)
	}
	url, err := s.storage.PresignGet(ctx, img.StorageKey)
	if err != nil {
		return "", &domain.StorageError{Op: "presign", Err: err}
	}
	return url, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultHistoryLimit
	case limit > maxHistoryLimit:
		return maxHistoryLimit
	default:
		return limit
	}
}

