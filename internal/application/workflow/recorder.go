package workflow

import (
	"context"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	domainwf "github.com/garyjia/expense-approval/internal/domain/workflow"
)

// Recorder appends audit entries. It must run in the same transaction as the mutation it describes.
type Recorder struct {
	history port.HistoryRepository
	now     func() time.Time
}

// NewRecorder creates a new audit recorder
func NewRecorder(history port.HistoryRepository, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{history: history, now: now}
}

// Record appends one history entry. Storage failures surface as ErrPersistence.
func (r *Recorder) Record(ctx context.Context, expenseID int64, actorID, action, comments string, metadata map[string]interface{}) (*entity.ApprovalHistory, error) {
	entry := &entity.ApprovalHistory{
		ExpenseID: expenseID,
		ActorID:   actorID,
		Action:    action,
		Comments:  comments,
		Metadata:  metadata,
		CreatedAt: r.now().UTC(),
	}
	if err := r.history.Create(ctx, entry); err != nil {
		return nil, domainwf.Persistence("record "+action, err)
	}
	return entry, nil
}
