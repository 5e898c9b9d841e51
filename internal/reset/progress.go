package reset

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Progress is the externally visible state of one reset operation,
// published after every stage so an operator can poll while the reset
// runs.
type Progress struct {
	OperationID string    `json:"operation_id"`
	Status      string    `json:"status"`
	CurrentStep int       `json:"current_step"`
	TotalSteps  int       `json:"total_steps"`
	Percentage  int       `json:"percentage"`
	StepName    string    `json:"step_name"`
	Log         []string  `json:"log"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const (
	StatusRunning = "RUNNING"
	StatusDone    = "DONE"
	StatusFailed  = "FAILED"
)

// Tracker publishes reset progress out of band. Publishing must not
// fail the reset itself; implementations swallow backend errors.
type Tracker interface {
	Publish(ctx context.Context, p Progress)
	Load(ctx context.Context, operationID string) (Progress, bool)
}

// progressTTL keeps finished operations around long enough to inspect.
const progressTTL = 24 * time.Hour

// RedisTracker stores progress as JSON under reset:<operation_id>.
type RedisTracker struct {
	client *redis.Client
}

func NewRedisTracker(client *redis.Client) *RedisTracker {
	return &RedisTracker{client: client}
}

func trackerKey(operationID string) string {
	return fmt.Sprintf("reset:%s", operationID)
}

func (t *RedisTracker) Publish(ctx context.Context, p Progress) {
	payload, err := json.Marshal(p)
	if err != nil {
		return
	}
	_ = t.client.Set(ctx, trackerKey(p.OperationID), payload, progressTTL).Err()
}

func (t *RedisTracker) Load(ctx context.Context, operationID string) (Progress, bool) {
	payload, err := t.client.Get(ctx, trackerKey(operationID)).Bytes()
	if err != nil {
		return Progress{}, false
	}
	var p Progress
	if err := json.Unmarshal(payload, &p); err != nil {
		return Progress{}, false
	}
	return p, true
}
