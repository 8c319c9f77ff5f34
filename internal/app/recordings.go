package app

import (
	"context"
	"fmt"

	"github.com/cesargomez89/recshelf/internal/constants"
	"github.com/cesargomez89/recshelf/internal/domain"
	"github.com/cesargomez89/recshelf/internal/logger"
	"github.com/cesargomez89/recshelf/internal/store"
)

// RecordingService is the read side of the catalog plus the guarded status
// transition used by downstream job runners.
type RecordingService struct {
	Repo   *store.DB
	Logger *logger.Logger
}

func NewRecordingService(repo *store.DB, log *logger.Logger) *RecordingService {
	if log == nil {
		log = logger.Default()
	}
	return &RecordingService{Repo: repo, Logger: log.WithComponent("recordings")}
}

// RecordingPage is one page of a recordings listing.
type RecordingPage struct {
	Items    []*domain.Recording
	Total    int
	Page     int
	PageSize int
}

// List returns page (1-based) of recordings, newest first. A nil status
// lists every status.
func (s *RecordingService) List(ctx context.Context, status *domain.RecordingStatus, page, pageSize int) (*RecordingPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = constants.DefaultPageSize
	}
	if pageSize > constants.MaxPageSize {
		pageSize = constants.MaxPageSize
	}

	filter := store.RecordingFilter{Status: status, Limit: pageSize, Offset: (page - 1) * pageSize}
	items, err := s.Repo.ListRecordings(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}
	total, err := s.Repo.CountRecordings(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count recordings: %w", err)
	}
	return &RecordingPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

func (s *RecordingService) Get(ctx context.Context, id string) (*domain.Recording, error) {
	return s.Repo.GetRecording(ctx, id)
}

// Counts returns the number of recordings per status, including zeroes.
func (s *RecordingService) Counts(ctx context.Context) (map[domain.RecordingStatus]int, error) {
	counts, err := s.Repo.CountRecordingsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	for _, st := range domain.AllRecordingStatuses() {
		if _, ok := counts[st]; !ok {
			counts[st] = 0
		}
	}
	return counts, nil
}

// Transition moves a recording to a new status if the state machine allows it.
func (s *RecordingService) Transition(ctx context.Context, id string, to domain.RecordingStatus) (*domain.Recording, error) {
	rec, err := s.Repo.TransitionStatus(ctx, id, to)
	if err != nil {
		s.Logger.Warn("Status transition rejected", "recording_id", id, "to", to, "error", err)
		return nil, err
	}
	s.Logger.Info("Status transitioned", "recording_id", id, "to", to)
	return rec, nil
}
