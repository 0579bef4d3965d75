package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clinsight/internal/domain"
	"clinsight/internal/repository/memory"
	"clinsight/internal/service"
	"clinsight/mocks"
)

func seedHistory(t *testing.T, repo *memory.AnalysisRepo, userID string, titles ...string) []uuid.UUID {
	t.Helper()
	base := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	ids := make([]uuid.UUID, 0, len(titles))
	for i, title := range titles {
		rec := &domain.AnalysisRecord{
			ID:        uuid.New(),
			UserID:    userID,
			Title:     title,
			CaseText:  "case " + title,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Create(context.Background(), rec))
		ids = append(ids, rec.ID)
	}
	return ids
}

func TestHistoryService_GetChecksOwnership(t *testing.T) {
	repo := memory.NewAnalysisRepo()
	ids := seedHistory(t, repo, testUser, "Dyspnea")
	svc := service.NewHistoryService(repo, nil)

	rec, err := svc.Get(context.Background(), testUser, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "Dyspnea", rec.Title)

	_, err = svc.Get(context.Background(), "someone-else", ids[0])
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.Get(context.Background(), testUser, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHistoryService_ListNewestFirst(t *testing.T) {
	repo := memory.NewAnalysisRepo()
	seedHistory(t, repo, testUser, "first", "second", "third")
	seedHistory(t, repo, "user-2", "other")
	svc := service.NewHistoryService(repo, nil)

	records, err := svc.List(context.Background(), testUser, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "third", records[0].Title)
	assert.Equal(t, "first", records[2].Title)

	records, err = svc.List(context.Background(), testUser, 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestHistoryService_ListClampsLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"default", 0, 50},
		{"negative", -3, 50},
		{"in range", 20, 20},
		{"capped", 1000, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mocks.MockAnalysisRepo)
			repo.On("ListByUser", mock.Anything, testUser, tt.want).Return([]domain.AnalysisRecord{}, nil)
			svc := service.NewHistoryService(repo, nil)

			_, err := svc.List(context.Background(), testUser, tt.limit)
			require.NoError(t, err)
			repo.AssertExpectations(t)
		})
	}
}

func TestHistoryService_SearchIsCaseInsensitive(t *testing.T) {
	repo := memory.NewAnalysisRepo()
	seedHistory(t, repo, testUser, "Chest Pain", "Fever of unknown origin", "Chest tightness")
	svc := service.NewHistoryService(repo, nil)

	records, err := svc.Search(context.Background(), testUser, "  CHEST ", 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Chest tightness", records[0].Title)

	records, err = svc.Search(context.Background(), testUser, "case fever", 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	records, err = svc.Search(context.Background(), testUser, "", 0)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestHistoryService_SearchFindsRecordsOlderThanDefaultPage(t *testing.T) {
	repo := memory.NewAnalysisRepo()
	titles := []string{"Pheochromocytoma workup"}
	for i := 0; i < 60; i++ {
		titles = append(titles, fmt.Sprintf("Routine follow-up %d", i))
	}
	seedHistory(t, repo, testUser, titles...)
	svc := service.NewHistoryService(repo, nil)

	records, err := svc.Search(context.Background(), testUser, "pheochromocytoma", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Pheochromocytoma workup", records[0].Title)
}

func TestHistoryService_SearchLimitBoundsMatches(t *testing.T) {
	repo := memory.NewAnalysisRepo()
	seedHistory(t, repo, testUser, "Syncope 1", "Headache", "Syncope 2", "Syncope 3")
	svc := service.NewHistoryService(repo, nil)

	records, err := svc.Search(context.Background(), testUser, "syncope", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Syncope 3", records[0].Title)
	assert.Equal(t, "Syncope 2", records[1].Title)
}

func TestHistoryService_SearchScansFullWindow(t *testing.T) {
	repo := new(mocks.MockAnalysisRepo)
	repo.On("ListByUser", mock.Anything, testUser, 200).Return([]domain.AnalysisRecord{{Title: "Gout"}}, nil)
	svc := service.NewHistoryService(repo, nil)

	records, err := svc.Search(context.Background(), testUser, "gout", 5)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	repo.AssertExpectations(t)
}

func TestHistoryService_DeleteRemovesStoredImages(t *testing.T) {
	repo := memory.NewAnalysisRepo()
	rec := &domain.AnalysisRecord{
		ID:     uuid.New(),
		UserID: testUser,
		Images: []domain.ImageDescriptor{
			{Index: 0, StorageKey: "analyses/a/0.png", Stored: true},
			{Index: 1, Stored: false},
			{Index: 2, StorageKey: "analyses/a/2.png", Stored: true},
		},
	}
	require.NoError(t, repo.Create(context.Background(), rec))

	storage := new(mocks.MockObjectStorage)
	storage.On("Delete", mock.Anything, "analyses/a/0.png").Return(nil)
	storage.On("Delete", mock.Anything, "analyses/a/2.png").Return(errors.New("s3 unavailable"))
	svc := service.NewHistoryService(repo, storage)

	require.NoError(t, svc.Delete(context.Background(), testUser, rec.ID))
	assert.Equal(t, 0, repo.Count())
	storage.AssertExpectations(t)
	storage.AssertNumberOfCalls(t, "Delete", 2)
}

func TestHistoryService_DeleteOtherUsersRecord(t *testing.T) {
	repo := memory.NewAnalysisRepo()
	ids := seedHistory(t, repo, testUser, "mine")
	svc := service.NewHistoryService(repo, nil)

	err := svc.Delete(context.Background(), "intruder", ids[0])
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, 1, repo.Count())
}

func TestHistoryService_ImageURL(t *testing.T) {
	repo := memory.NewAnalysisRepo()
	rec := &domain.AnalysisRecord{
		ID:     uuid.New(),
		UserID: testUser,
		Images: []domain.ImageDescriptor{
			{Index: 0, StorageKey: "analyses/b/0.png", Stored: true},
			{Index: 1, Stored: false},
		},
	}
	require.NoError(t, repo.Create(context.Background(), rec))

	storage := new(mocks.MockObjectStorage)
	storage.On("PresignGet", mock.Anything, "analyses/b/0.png").Return("https://signed.example/0", nil)
	svc := service.NewHistoryService(repo, storage)

	url, err := svc.ImageURL(context.Background(), testUser, rec.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/0", url)

	for _, idx := range []int{1, 2, -1} {
		t.Run(fmt.Sprintf("index %d", idx), func(t *testing.T) {
			_, err := svc.ImageURL(context.Background(), testUser, rec.ID, idx)
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}

	_, err = svc.ImageURL(context.Background(), "intruder", rec.ID, 0)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestHistoryService_ImageURLPresignFailure(t *testing.T) {
	repo := memory.NewAnalysisRepo()
	rec := &domain.AnalysisRecord{
		ID:     uuid.New(),
		UserID: testUser,
		Images: []domain.ImageDescriptor{{Index: 0, StorageKey: "k", Stored: true}},
	}
	require.NoError(t, repo.Create(context.Background(), rec))

	storage := new(mocks.MockObjectStorage)
	storage.On("PresignGet", mock.Anything, "k").Return("", errors.New("no credentials"))
	svc := service.NewHistoryService(repo, storage)

	_, err := svc.ImageURL(context.Background(), testUser, rec.ID, 0)
	assert.ErrorIs(t, err, domain.ErrStorage)
}
