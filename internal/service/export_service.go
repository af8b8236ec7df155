package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/paylog/timecard-api/internal/models"
	"github.com/paylog/timecard-api/pkg/export"
	"github.com/paylog/timecard-api/pkg/storage"
)

type payrollPeriodReader interface {
	ListBetween(ctx context.Context, from, to time.Time, employeeID string, status *models.PeriodStatus) ([]models.PayPeriodDetail, error)
}

type timesheetEntryReader interface {
	List(ctx context.Context, filter models.TimeEntryFilter) ([]models.TimeEntry, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix   string
	ResultTTL   time.Duration
	PerDiemRate float64
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportService builds payroll datasets and persists rendered files. The
// per-diem amount column is the only place units are monetized; everywhere
// else per-diem stays in units.
type ExportService struct {
	periods payrollPeriodReader
	entries timesheetEntryReader
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(periods payrollPeriodReader, entries timesheetEntryReader, fileStore fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.PerDiemRate <= 0 {
		cfg.PerDiemRate = 50
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		periods: periods,
		entries: entries,
		storage: fileStore,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// Generate builds the dataset according to the job definition and stores the
// rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/export/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	from, err := time.Parse("2006-01-02", job.Params.DateFrom)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("invalid dateFrom %q", job.Params.DateFrom)
	}
	to, err := time.Parse("2006-01-02", job.Params.DateTo)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("invalid dateTo %q", job.Params.DateTo)
	}

	employeeID := ""
	if job.Params.EmployeeID != nil {
		employeeID = *job.Params.EmployeeID
	}

	switch job.Type {
	case models.ReportTypePayroll:
		dataset, err := s.payrollDataset(ctx, from, to, employeeID, job.Params.Status)
		title := fmt.Sprintf("Payroll Summary %s to %s", job.Params.DateFrom, job.Params.DateTo)
		return dataset, title, err
	case models.ReportTypeTimesheet:
		dataset, err := s.timesheetDataset(ctx, from, to, employeeID)
		title := fmt.Sprintf("Timesheet Detail %s to %s", job.Params.DateFrom, job.Params.DateTo)
		return dataset, title, err
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) payrollDataset(ctx context.Context, from, to time.Time, employeeID string, status *models.PeriodStatus) (export.Dataset, error) {
	periods, err := s.periods.ListBetween(ctx, from, to, employeeID, status)
	if err != nil {
		return export.Dataset{}, err
	}

	dataset := export.Dataset{
		Headers: []string{
			"Employee", "Week Start", "Week End", "Status",
			"Regular Hours", "Overtime Hours", "Holiday Hours", "Sick Hours",
			"Rotation Hours", "Travel Hours", "PTO Hours",
			"PTO Days", "Sick Days", "Rotation Days",
			"Per Diem Units", "Per Diem Amount",
		},
	}
	for _, p := range periods {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Employee":        p.EmployeeName,
			"Week Start":      p.StartDate.Format("2006-01-02"),
			"Week End":        p.EndDate.Format("2006-01-02"),
			"Status":          string(p.Status),
			"Regular Hours":   formatHours(p.TotalHours),
			"Overtime Hours":  formatHours(p.TotalOvertimeHours),
			"Holiday Hours":   formatHours(p.TotalHolidayHours),
			"Sick Hours":      formatHours(p.TotalSickHours),
			"Rotation Hours":  formatHours(p.TotalRotationHours),
			"Travel Hours":    formatHours(p.TotalTravelHours),
			"PTO Hours":       formatHours(p.TotalPtoHours),
			"PTO Days":        strconv.Itoa(p.TotalPto),
			"Sick Days":       strconv.Itoa(p.TotalSickDays),
			"Rotation Days":   strconv.Itoa(p.TotalRotationDays),
			"Per Diem Units":  formatHours(p.TotalPerDiem),
			"Per Diem Amount": fmt.Sprintf("%.2f", p.TotalPerDiem*s.cfg.PerDiemRate),
		})
	}
	return dataset, nil
}

func (s *ExportService) timesheetDataset(ctx context.Context, from, to time.Time, employeeID string) (export.Dataset, error) {
	entries, err := s.entries.List(ctx, models.TimeEntryFilter{EmployeeID: employeeID, DateFrom: &from, DateTo: &to})
	if err != nil {
		return export.Dataset{}, err
	}

	dataset := export.Dataset{
		Headers: []string{"Date", "Category", "Start", "End", "Hours", "Per Diem", "Status"},
	}
	for _, e := range entries {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Date":     e.Date.Format("2006-01-02"),
			"Category": string(e.Category),
			"Start":    formatClock(e.StartTime),
			"End":      formatClock(e.EndTime),
			"Hours":    formatHours(e.Hours()),
			"Per Diem": formatHours(e.PerDiem),
			"Status":   string(e.Status),
		})
	}
	return dataset, nil
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	rangePart := sanitizeFilename(job.Params.DateFrom + "_" + job.Params.DateTo)
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), rangePart, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func formatHours(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatClock(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("15:04")
}
