package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/compensation/internal/bonus"
	"github.com/odyssey-erp/compensation/internal/bonus/export"
	jobmetrics "github.com/odyssey-erp/compensation/internal/jobs"
	"github.com/odyssey-erp/compensation/internal/shared"
)

const (
	snapshotJobName = "bonus_snapshot"
	snapshotLockTTL = 15 * time.Minute
)

// BonusCalculator is the part of bonus.Service the snapshot needs.
type BonusCalculator interface {
	CalculateBonuses(ctx context.Context, req bonus.CalculateRequest) (*bonus.CalculationResponse, error)
}

// SnapshotResult describes one archived run.
type SnapshotResult struct {
	RunID   string
	Period  string
	Vendors int
	Files   []string
}

// BonusSnapshotJob writes a month of bonus results to CSV and XLSX files.
type BonusSnapshotJob struct {
	Service   BonusCalculator
	Dir       string
	Formatter export.Formatter
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	// Locker, when set, keeps concurrent workers from archiving the same
	// period twice.
	Locker *redis.Client
	clock  func() time.Time
}

// NewBonusSnapshotJob wires dependencies for the snapshot handler.
func NewBonusSnapshotJob(service BonusCalculator, dir string, formatter export.Formatter, logger *slog.Logger, metrics *jobmetrics.Metrics) *BonusSnapshotJob {
	return &BonusSnapshotJob{
		Service:   service,
		Dir:       dir,
		Formatter: formatter,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskBonusSnapshot tasks.
func (j *BonusSnapshotJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("bonus snapshot: handler not configured")
	}
	var payload BonusSnapshotPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("bonus snapshot: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	_, err := j.Run(ctx, payload.Period)
	return err
}

// Run archives the given yyyy-mm period, or the previous month when empty.
func (j *BonusSnapshotJob) Run(ctx context.Context, period string) (result SnapshotResult, resultErr error) {
	tracker := j.Metrics.Track(snapshotJobName)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start, end, err := j.monthBounds(period)
	if err != nil {
		return SnapshotResult{}, fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	result = SnapshotResult{RunID: uuid.NewString(), Period: start.Format(periodLayout)}
	logger := j.logger().With(slog.String("period", result.Period), slog.String("run_id", result.RunID))
	if j.Locker != nil {
		key := shared.SnapshotLockKey(result.Period)
		acquired, err := j.Locker.SetNX(ctx, key, result.RunID, snapshotLockTTL).Result()
		if err != nil {
			return SnapshotResult{}, fmt.Errorf("bonus snapshot: acquire lock: %w", err)
		}
		if !acquired {
			logger.Info("bonus snapshot already running, skipping")
			return SnapshotResult{Period: result.Period}, nil
		}
		defer j.unlock(key, result.RunID, logger)
	}
	logger.Info("starting bonus snapshot")

	resp, err := j.Service.CalculateBonuses(ctx, bonus.CalculateRequest{StartDate: start, EndDate: end})
	if err != nil {
		logger.Error("calculate snapshot", slog.Any("error", err))
		return SnapshotResult{}, err
	}
	result.Vendors = len(resp.Results)

	dir := filepath.Join(j.Dir, result.Period)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return SnapshotResult{}, fmt.Errorf("bonus snapshot: create dir: %w", err)
	}
	base := filepath.Join(dir, "bonuses_"+result.RunID)
	writers := []struct {
		path  string
		write func(io.Writer) error
	}{
		{base + ".csv", func(w io.Writer) error { return export.WriteBonusDetailCSV(w, resp) }},
		{base + "_summary.csv", func(w io.Writer) error { return export.WriteBonusSummaryCSV(w, resp) }},
		{base + ".xlsx", func(w io.Writer) error { return export.WriteBonusXLSX(w, resp, j.Formatter) }},
	}
	for _, out := range writers {
		if err := writeFile(out.path, out.write); err != nil {
			logger.Error("write snapshot file", slog.String("path", out.path), slog.Any("error", err))
			return SnapshotResult{}, err
		}
		result.Files = append(result.Files, out.path)
	}
	tracker.Records(result.Vendors)

	logger.Info("completed bonus snapshot", slog.Int("vendors", result.Vendors), slog.Int("files", len(result.Files)))
	return result, nil
}

func (j *BonusSnapshotJob) monthBounds(period string) (time.Time, time.Time, error) {
	var first time.Time
	if period == "" {
		now := j.now()
		first = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	} else {
		parsed, err := time.Parse(periodLayout, period)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bonus snapshot: invalid period %q", period)
		}
		first = parsed
	}
	return first, first.AddDate(0, 1, -1), nil
}

func (j *BonusSnapshotJob) unlock(key, runID string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	owner, err := j.Locker.Get(ctx, key).Result()
	if err != nil || owner != runID {
		return
	}
	if err := j.Locker.Del(ctx, key).Err(); err != nil {
		logger.Warn("release snapshot lock", slog.Any("error", err))
	}
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("bonus snapshot: create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return write(f)
}

func (j *BonusSnapshotJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *BonusSnapshotJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
