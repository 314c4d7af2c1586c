package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/credit-cli/internal/model"
)

type journalKey struct{}

// Journal collects the provider calls made while serving one request. It is
// safe for concurrent use.
type Journal struct {
	mu    sync.Mutex
	calls []model.CallLog
	now   func() time.Time
}

// NewJournal creates an empty Journal.
func NewJournal() *Journal {
	return &Journal{now: time.Now}
}

// WithJournal attaches j to ctx.
func WithJournal(ctx context.Context, j *Journal) context.Context {
	return context.WithValue(ctx, journalKey{}, j)
}

// JournalFrom returns the Journal attached to ctx, or nil.
func JournalFrom(ctx context.Context) *Journal {
	j, _ := ctx.Value(journalKey{}).(*Journal)
	return j
}

// Record appends one call.
func (j *Journal) Record(endpoint string, res Result) {
	entry := model.CallLog{
		ID:         uuid.NewString(),
		Provider:   res.Provider,
		Endpoint:   endpoint,
		Outcome:    string(res.Outcome),
		Kind:       string(res.Kind),
		DurationMs: res.Duration.Milliseconds(),
		CreatedAt:  j.now().UTC(),
	}
	if res.Err != nil {
		entry.Error = truncate(res.Err.Error(), 500)
	}

	j.mu.Lock()
	j.calls = append(j.calls, entry)
	j.mu.Unlock()
}

// Calls returns a copy of the recorded calls in recording order.
func (j *Journal) Calls() []model.CallLog {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]model.CallLog(nil), j.calls...)
}
