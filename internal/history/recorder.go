package history

import (
	"context"
	"time"

	"github.com/nerrad567/govee-local-bridge/internal/report"
)

// writeTimeout bounds a single push log insert.
const writeTimeout = 2 * time.Second

// Logger defines the logging interface used by the recorder.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder writes every push result to the push log.
type Recorder struct {
	repo   Repository
	logger Logger
	now    func() time.Time
}

// NewRecorder creates a recorder over repo. A nil logger discards output.
func NewRecorder(repo Repository, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{repo: repo, logger: logger, now: time.Now}
}

// ObservePush implements report.Observer. Skipped pushes are recorded too;
// they show when the gate held a push back.
func (r *Recorder) ObservePush(res report.Result) {
	e := FromResult(res)
	if e.ID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.repo.Create(ctx, &e); err != nil {
		r.logger.Warn("recording push failed", "id", e.ID, "address", e.Address, "error", err)
	}
}

// RunRetention deletes entries older than keep every interval until ctx is
// cancelled. A non-positive keep disables pruning.
func (r *Recorder) RunRetention(ctx context.Context, keep, interval time.Duration) {
	if keep <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		r.prune(ctx, keep)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Recorder) prune(ctx context.Context, keep time.Duration) {
	n, err := r.repo.Prune(ctx, r.now().Add(-keep))
	if err != nil {
		r.logger.Warn("pruning push log failed", "error", err)
		return
	}
	if n > 0 {
		r.logger.Debug("push log pruned", "deleted", n)
	}
}
