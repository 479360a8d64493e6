package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tameer/internal/domain"
	"tameer/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const exportQueueSize = 16

// ExportTask asks for one workbook snapshot of the requests table.
type ExportTask struct {
	Reason      string
	RequestedAt time.Time
}

// ExportWorker writes .xlsx snapshots of all requests for the back
// office. Tasks queue in memory; a full queue drops the task, since a
// later snapshot supersedes an earlier one anyway.
type ExportWorker struct {
	store  domain.RequestStore
	dir    string
	retry  RetryPolicy
	queue  chan ExportTask
	logger *zerolog.Logger
}

func NewExportWorker(requestStore domain.RequestStore, dir string, retry RetryPolicy, logger *zerolog.Logger) *ExportWorker {
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy()
	}
	return &ExportWorker{
		store:  requestStore,
		dir:    dir,
		retry:  retry,
		queue:  make(chan ExportTask, exportQueueSize),
		logger: logger,
	}
}

// Enqueue schedules a snapshot. Non-blocking.
func (w *ExportWorker) Enqueue(reason string) {
	task := ExportTask{Reason: reason, RequestedAt: time.Now()}
	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Str("reason", reason).Msg("export queue full, task dropped")
	}
}

// Start runs the worker loop until ctx is done.
func (w *ExportWorker) Start(ctx context.Context) {
	w.logger.Info().Str("dir", w.dir).Msg("export worker started")
	defer w.logger.Info().Msg("export worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-w.queue:
			w.processWithRetry(ctx, task)
		}
	}
}

func (w *ExportWorker) processWithRetry(ctx context.Context, task ExportTask) {
	for attempt := 1; attempt <= w.retry.MaxAttempts; attempt++ {
		path, err := w.ExportSnapshot(ctx)
		if err == nil {
			w.logger.Info().Str("path", path).Str("reason", task.Reason).Msg("export written")
			return
		}

		w.logger.Warn().Err(err).Int("attempt", attempt).Msg("export failed")
		if attempt == w.retry.MaxAttempts {
			w.logger.Error().Str("reason", task.Reason).Msg("export abandoned after retries")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.retry.NextDelay(attempt)):
		}
	}
}

var exportHeader = []string{
	"رقم الطلب", "الاسم", "الهاتف", "البريد الإلكتروني", "الولاية",
	"العنوان", "نوع الخدمة", "الأولوية", "التاريخ المفضل",
	"الوصف", "الحالة", "تاريخ الإنشاء", "آخر تحديث",
}

// ExportSnapshot writes every request into a timestamped workbook and
// returns the file path.
func (w *ExportWorker) ExportSnapshot(ctx context.Context) (string, error) {
	requests, err := w.store.ListAll(ctx)
	if err != nil {
		return "", fmt.Errorf("load requests: %w", err)
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "الطلبات"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", fmt.Errorf("drop default sheet: %w", err)
	}

	for col, title := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return "", err
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return "", err
		}
	}

	for i, req := range requests {
		row := exportRow(&req)
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return "", err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return "", err
			}
		}
	}

	path := filepath.Join(w.dir, fmt.Sprintf("requests-%s.xlsx", time.Now().Format("20060102-150405")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

func exportRow(req *models.ServiceRequest) []interface{} {
	preferred := ""
	if req.PreferredDate != nil {
		preferred = req.PreferredDate.Format("2006-01-02")
	}
	return []interface{}{
		req.RequestID,
		req.Name,
		req.Phone,
		req.Email,
		req.Location,
		req.Address,
		req.ServiceType,
		req.Urgency,
		preferred,
		req.Description,
		string(req.Status),
		req.CreatedAt.Format("2006-01-02 15:04"),
		req.UpdatedAt.Format("2006-01-02 15:04"),
	}
}
