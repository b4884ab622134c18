package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tallyhq/tally/internal/repository"
)

// Service handles task business logic outside of timer transitions. Status
// changes driven by timer actions live in the timelog service; everything
// there still passes through the transition table in this package.
type Service struct {
	tasks  Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new task service.
func NewService(tasks Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		tasks:  tasks,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateRequest describes a macro task creation request.
type CreateRequest struct {
	UserID            string
	ProjectID         *string
	ClientID          *string
	Title             string
	Priority          Priority
	Billable          bool
	RateOverrideCents *int64
	EstimatedMinutes  int64
}

// AddStepRequest describes a micro task creation request. A nil OrderIndex
// appends the step after the current last one.
type AddStepRequest struct {
	TaskID           string
	Title            string
	EstimatedMinutes int64
	OrderIndex       *int
}

// Create creates a new macro task in the not_started state.
func (s *Service) Create(ctx context.Context, tenantID string, req CreateRequest) (*Task, error) {
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Title) == "" {
		return nil, ErrInvalidInput
	}
	if req.EstimatedMinutes < 0 {
		return nil, ErrInvalidInput
	}
	priority := req.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
	default:
		return nil, ErrInvalidInput
	}
	if req.RateOverrideCents != nil && *req.RateOverrideCents < 0 {
		return nil, ErrInvalidInput
	}

	now := s.now()
	t := &Task{
		ID:                uuid.NewString(),
		TenantID:          tenantID,
		UserID:            req.UserID,
		ProjectID:         req.ProjectID,
		ClientID:          req.ClientID,
		Title:             req.Title,
		Priority:          priority,
		Status:            StatusNotStarted,
		Billable:          req.Billable,
		RateOverrideCents: req.RateOverrideCents,
		EstimatedMinutes:  req.EstimatedMinutes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.tasks.Create(ctx, tenantID, t); err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	return t, nil
}

// Get retrieves a task with its cached aggregates.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*Task, error) {
	t, err := s.tasks.Get(ctx, tenantID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting task: %w", err)
	}
	return t, nil
}

// Delete removes a task and all of its micro tasks. Only the owner may delete.
func (s *Service) Delete(ctx context.Context, tenantID, actorUserID, id string) error {
	t, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if t.UserID != actorUserID {
		return ErrNotOwner
	}
	if err := s.tasks.Delete(ctx, tenantID, id); err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	return nil
}

// AddStep inserts a micro task, renumbering so order indices stay dense and
// unique within the parent.
func (s *Service) AddStep(ctx context.Context, tenantID string, req AddStepRequest) (*MicroTask, error) {
	if strings.TrimSpace(req.Title) == "" || req.EstimatedMinutes < 0 {
		return nil, ErrInvalidInput
	}
	t, err := s.Get(ctx, tenantID, req.TaskID)
	if err != nil {
		return nil, err
	}

	existing, err := s.tasks.ListMicro(ctx, tenantID, t.ID)
	if err != nil {
		return nil, fmt.Errorf("listing micro tasks: %w", err)
	}

	index := len(existing)
	if req.OrderIndex != nil {
		if *req.OrderIndex < 0 || *req.OrderIndex > len(existing) {
			return nil, ErrInvalidInput
		}
		index = *req.OrderIndex
	}

	if index < len(existing) {
		if err := s.tasks.ShiftOrderIndices(ctx, tenantID, t.ID, index, 1); err != nil {
			return nil, fmt.Errorf("shifting order indices: %w", err)
		}
	}

	now := s.now()
	m := &MicroTask{
		ID:               uuid.NewString(),
		TenantID:         tenantID,
		TaskID:           t.ID,
		OrderIndex:       index,
		Title:            req.Title,
		Status:           StepNotStarted,
		EstimatedMinutes: req.EstimatedMinutes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.tasks.CreateMicro(ctx, tenantID, m); err != nil {
		return nil, fmt.Errorf("creating micro task: %w", err)
	}
	return m, nil
}

// ListSteps returns a task's micro tasks in order.
func (s *Service) ListSteps(ctx context.Context, tenantID, taskID string) ([]MicroTask, error) {
	if _, err := s.Get(ctx, tenantID, taskID); err != nil {
		return nil, err
	}
	steps, err := s.tasks.ListMicro(ctx, tenantID, taskID)
	if err != nil {
		return nil, fmt.Errorf("listing micro tasks: %w", err)
	}
	return steps, nil
}

// RemoveStep deletes a micro task and compacts the remaining order indices.
func (s *Service) RemoveStep(ctx context.Context, tenantID, microID string) error {
	m, err := s.tasks.GetMicro(ctx, tenantID, microID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrMicroTaskNotFound
	}
	if err != nil {
		return fmt.Errorf("getting micro task: %w", err)
	}
	if err := s.tasks.DeleteMicro(ctx, tenantID, microID); err != nil {
		return fmt.Errorf("deleting micro task: %w", err)
	}
	if err := s.tasks.Renumber(ctx, tenantID, m.TaskID); err != nil {
		return fmt.Errorf("renumbering micro tasks: %w", err)
	}
	return nil
}

// NextStep returns the first not-completed micro task by order index, or nil
// when every step is done. Order index is the sole tie-break.
func (s *Service) NextStep(ctx context.Context, tenantID, taskID string) (*MicroTask, error) {
	steps, err := s.ListSteps(ctx, tenantID, taskID)
	if err != nil {
		return nil, err
	}
	for i := range steps {
		if steps[i].Status != StepCompleted {
			return &steps[i], nil
		}
	}
	return nil, nil
}
