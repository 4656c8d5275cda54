package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitlabs/talentstream-proctor/internal/model"
	"github.com/bitlabs/talentstream-proctor/internal/repository"
	"github.com/google/uuid"
)

const (
	defaultHistoryPerPage = 20
	maxHistoryPerPage     = 100
)

// OutcomeReader is the read side of *repository.OutcomeRepository.
type OutcomeReader interface {
	GetByAttempt(ctx context.Context, attemptID uuid.UUID) (*model.Outcome, error)
	ListByApplicant(ctx context.Context, applicantID, page, perPage int) ([]model.Outcome, int64, error)
}

// ViolationReader is the read side of *repository.ViolationRepository.
type ViolationReader interface {
	ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.ViolationEvent, error)
}

// AttemptDetail is one finished attempt with its violation trail.
type AttemptDetail struct {
	Outcome    model.Outcome          `json:"outcome"`
	Violations []model.ViolationEvent `json:"violations"`
}

// HistoryPage is a page of outcomes.
type HistoryPage struct {
	Outcomes []model.Outcome
	Total    int64
	Page     int
	PerPage  int
}

// HistoryService reads an applicant's persisted outcomes.
type HistoryService struct {
	outcomes   OutcomeReader
	violations ViolationReader
}

// NewHistoryService creates a new HistoryService.
func NewHistoryService(outcomes OutcomeReader, violations ViolationReader) *HistoryService {
	return &HistoryService{outcomes: outcomes, violations: violations}
}

// List returns a page of outcomes, newest first.
func (s *HistoryService) List(ctx context.Context, applicantID, page, perPage int) (*HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultHistoryPerPage
	}
	if perPage > maxHistoryPerPage {
		perPage = maxHistoryPerPage
	}

	outcomes, total, err := s.outcomes.ListByApplicant(ctx, applicantID, page, perPage)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	return &HistoryPage{Outcomes: outcomes, Total: total, Page: page, PerPage: perPage}, nil
}

// Detail returns one outcome of the applicant with its violations.
func (s *HistoryService) Detail(ctx context.Context, applicantID int, attemptID uuid.UUID) (*AttemptDetail, error) {
	o, err := s.outcomes.GetByAttempt(ctx, attemptID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get outcome: %w", err)
	}
	if o.ApplicantID != applicantID {
		return nil, ErrAttemptNotFound
	}

	violations, err := s.violations.ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}
	if violations == nil {
		violations = []model.ViolationEvent{}
	}
	return &AttemptDetail{Outcome: *o, Violations: violations}, nil
}
