package task

import "context"

// Repository provides persistence for macro and micro tasks.
type Repository interface {
	Create(ctx context.Context, tenantID string, t *Task) error
	Get(ctx context.Context, tenantID, id string) (*Task, error)
	Delete(ctx context.Context, tenantID, id string) error
	CreateMicro(ctx context.Context, tenantID string, m *MicroTask) error
	GetMicro(ctx context.Context, tenantID, id string) (*MicroTask, error)
	ListMicro(ctx context.Context, tenantID, taskID string) ([]MicroTask, error)
	DeleteMicro(ctx context.Context, tenantID, id string) error
	ShiftOrderIndices(ctx context.Context, tenantID, taskID string, fromIndex, delta int) error
	Renumber(ctx context.Context, tenantID, taskID string) error
}
