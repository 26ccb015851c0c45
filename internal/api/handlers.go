package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Veraticus/cardwise/internal/analysis"
	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/ingest"
	"github.com/Veraticus/cardwise/internal/model"
	"github.com/Veraticus/cardwise/internal/storage"
	"github.com/labstack/echo/v4"
)

// uploadField is the multipart field carrying an uploaded file.
const uploadField = "file"

type customersQuery struct {
	Segment string `query:"segment" validate:"omitempty,max=200"`
	Limit   int    `query:"limit" validate:"gte=0,lte=10000"`
	Offset  int    `query:"offset" validate:"gte=0"`
}

type transactionsQuery struct {
	CustomerID string `query:"customer_id" validate:"omitempty,max=64"`
	Limit      int    `query:"limit" validate:"gte=0,lte=10000"`
}

type runsQuery struct {
	Limit int `query:"limit" validate:"gte=0,lte=1000"`
}

type seedRequest struct {
	Seed       *int64 `json:"seed"`
	Customers  int    `json:"customers" validate:"gte=0,lte=10000"`
	Reset      bool   `json:"reset"`
	SkipBackup bool   `json:"skip_backup"`
}

type analyzeResponse struct {
	Run             *model.AnalysisRun `json:"run"`
	Generation      *model.Generation  `json:"generation"`
	Message         string             `json:"message"`
	Warning         string             `json:"warning,omitempty"`
	Segments        []model.Segment    `json:"segments"`
	SegmentsCreated int                `json:"segments_created"`
}

type importResponse struct {
	*ingest.ImportReport
	Message string `json:"message"`
}

type seedResponse struct {
	*analysis.SeedResult
	Message string `json:"message"`
}

func (s *Server) bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return err
	}
	return s.validate.Struct(dst)
}

func (s *Server) readContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), s.cfg.Timeout)
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"message": "Corporate Card Analytics API",
		"busy":    s.svc.Busy(),
	})
}

func (s *Server) handleAnalyze(c echo.Context) error {
	result, err := s.svc.Run(c.Request().Context(), analysis.Options{})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newAnalyzeResponse(result))
}

func newAnalyzeResponse(result *analysis.RunResult) analyzeResponse {
	resp := analyzeResponse{
		Message:         "Segmentation completed",
		Run:             result.Run,
		Generation:      result.Generation,
		Segments:        result.Segments,
		SegmentsCreated: len(result.Segments),
	}
	if result.Warning != nil {
		resp.Warning = result.Warning.Error()
	}
	return resp
}

func (s *Server) handleSegments(c echo.Context) error {
	ctx, cancel := s.readContext(c)
	defer cancel()

	segments, err := s.svc.Segments(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, segments)
}

func (s *Server) handleCustomers(c echo.Context) error {
	var q customersQuery
	if err := s.bind(c, &q); err != nil {
		return err
	}

	ctx, cancel := s.readContext(c)
	defer cancel()

	filter := storage.CustomerFilter{Limit: q.Limit, Offset: q.Offset}
	if q.Segment != "" {
		id, err := s.resolveSegment(ctx, q.Segment)
		if err != nil {
			return err
		}
		filter.SegmentID = id
	}

	customers, err := s.svc.Customers(ctx, filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, customers)
}

// resolveSegment accepts a segment ID, display name or category tag.
func (s *Server) resolveSegment(ctx context.Context, ref string) (string, error) {
	segments, err := s.svc.Segments(ctx)
	if err != nil {
		return "", err
	}
	for _, seg := range segments {
		if seg.ID == ref || strings.EqualFold(seg.Name, ref) || string(seg.Category) == ref {
			return seg.ID, nil
		}
	}
	return "", fmt.Errorf("segment %q: %w", ref, common.ErrNotFound)
}

func (s *Server) handleCustomer(c echo.Context) error {
	ctx, cancel := s.readContext(c)
	defer cancel()

	detail, err := s.svc.Customer(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, detail)
}

func (s *Server) handleRecommendations(c echo.Context) error {
	ctx, cancel := s.readContext(c)
	defer cancel()

	recs, err := s.svc.Recommend(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, recs)
}

func (s *Server) handleDashboardStats(c echo.Context) error {
	ctx, cancel := s.readContext(c)
	defer cancel()

	stats, err := s.svc.DashboardStats(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleTransactions(c echo.Context) error {
	var q transactionsQuery
	if err := s.bind(c, &q); err != nil {
		return err
	}

	ctx, cancel := s.readContext(c)
	defer cancel()

	txns, err := s.svc.Transactions(ctx, storage.TransactionFilter{CustomerID: q.CustomerID, Limit: q.Limit})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, txns)
}

func (s *Server) handleRuns(c echo.Context) error {
	var q runsQuery
	if err := s.bind(c, &q); err != nil {
		return err
	}

	ctx, cancel := s.readContext(c)
	defer cancel()

	runs, err := s.svc.Runs(ctx, q.Limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) handleRun(c echo.Context) error {
	ctx, cancel := s.readContext(c)
	defer cancel()

	run, err := s.svc.GetRun(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, run)
}

func (s *Server) handleUploadCustomers(c echo.Context) error {
	return s.upload(c, "Customers uploaded successfully", s.svc.ImportCustomers)
}

func (s *Server) handleUploadTransactions(c echo.Context) error {
	return s.upload(c, "Transactions uploaded successfully", s.svc.ImportTransactions)
}

func (s *Server) handleUploadOFX(c echo.Context) error {
	customerID := strings.TrimSpace(c.FormValue("customer_id"))
	if customerID == "" {
		return common.NewValidationError("customer_id", "is required", nil)
	}
	return s.upload(c, "Statement imported successfully", func(ctx context.Context, r io.Reader) (*ingest.ImportReport, error) {
		return s.svc.ImportOFX(ctx, r, customerID)
	})
}

type importFunc func(ctx context.Context, r io.Reader) (*ingest.ImportReport, error)

func (s *Server) upload(c echo.Context, msg string, fn importFunc) error {
	header, err := c.FormFile(uploadField)
	if err != nil {
		return common.NewValidationError(uploadField, "a file upload is required", err)
	}
	f, err := header.Open()
	if err != nil {
		return fmt.Errorf("failed to open upload: %w", err)
	}
	defer func() { _ = f.Close() }()

	report, err := fn(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, importResponse{Message: msg, ImportReport: report})
}

func (s *Server) handleSeed(c echo.Context) error {
	var req seedRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	return s.seed(c, req)
}

func (s *Server) handleResetAndSeed(c echo.Context) error {
	var req seedRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	req.Reset = true
	return s.seed(c, req)
}

func (s *Server) seed(c echo.Context, req seedRequest) error {
	opts := analysis.SeedOptions{
		Synthetic:  ingest.DefaultSyntheticOptions(),
		Reset:      req.Reset,
		SkipBackup: req.SkipBackup,
	}
	if req.Customers > 0 {
		opts.Synthetic.Customers = req.Customers
	}
	if req.Seed != nil {
		opts.Synthetic.Seed = *req.Seed
	}

	result, err := s.svc.Seed(c.Request().Context(), opts)
	if err != nil {
		return err
	}

	msg := "Data seeded successfully with segmentation"
	if req.Reset {
		msg = "Database reset and seeded successfully"
	}
	return c.JSON(http.StatusOK, seedResponse{Message: msg, SeedResult: result})
}
