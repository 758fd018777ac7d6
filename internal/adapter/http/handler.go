package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/eduverse/timetable/internal/domain"
	"github.com/eduverse/timetable/internal/port"
	"github.com/eduverse/timetable/internal/usecase/timetable"
)

const defaultLongPollTimeout = 55 * time.Second

type Handler struct {
	loader          *timetable.Loader
	log             *zap.Logger
	longPollTimeout time.Duration
}

func NewHandler(loader *timetable.Loader, logger *zap.Logger, longPollTimeout time.Duration) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if longPollTimeout <= 0 {
		longPollTimeout = defaultLongPollTimeout
	}
	return &Handler{loader: loader, log: logger.Named("http"), longPollTimeout: longPollTimeout}
}

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// NewServer builds the echo instance serving the API and the static page.
func NewServer(h *Handler, debug bool) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Debug = debug
	e.Validator = &CustomValidator{validator: validator.New()}
	e.HTTPErrorHandler = newHTTPErrorHandler(h.log)

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			h.log.Info("request",
				zap.String("id", v.RequestID),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
	if !debug {
		e.Use(middleware.Recover())
	}

	h.RegisterRoutes(e)
	h.ServeStatic(e)
	return e
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api")
	api.GET("/time/normalize", h.NormalizeTime)
	api.GET("/timetables", h.ListTimetables)

	tt := api.Group("/timetables/:scope/:id")
	tt.GET("", h.GetGrid)
	tt.POST("/reload", h.Reload)
	tt.DELETE("", h.Delete)
	tt.GET("/slots", h.GetSlots)
	tt.GET("/cell", h.GetCell)
	tt.GET("/classes", h.GetClasses)
}

func (h *Handler) query(c echo.Context) (port.Query, error) {
	q := port.Query{Scope: port.Scope(strings.ToLower(c.Param("scope"))), ID: c.Param("id")}
	if err := c.Validate(&q); err != nil {
		return q, err
	}
	return q, nil
}

func filterOf(c echo.Context) domain.Filter {
	return domain.Filter{ClassID: c.QueryParam("class"), Batch: c.QueryParam("batch")}
}

func daysOf(c echo.Context) []string {
	raw := c.QueryParam("days")
	if raw == "" {
		return nil
	}
	var days []string
	for _, d := range strings.Split(raw, ",") {
		if d = strings.TrimSpace(d); d != "" {
			days = append(days, domain.CanonicalDay(d))
		}
	}
	return days
}

type normalizeResponse struct {
	Input     string `json:"input"`
	Canonical string `json:"canonical"`
	Minutes   int    `json:"minutes"`
}

func (h *Handler) NormalizeTime(c echo.Context) error {
	raw := c.QueryParam("value")
	t, err := domain.ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, normalizeResponse{Input: raw, Canonical: t.String(), Minutes: t.Minutes()})
}

type snapshotInfo struct {
	Scope     port.Scope `json:"scope"`
	ID        string     `json:"id"`
	Version   string     `json:"version"`
	FetchedAt time.Time  `json:"fetched_at"`
	Slots     int        `json:"slots"`
	Entries   int        `json:"entries"`
	Skipped   int        `json:"skipped"`
}

func infoOf(s *port.Snapshot) snapshotInfo {
	info := snapshotInfo{
		Scope:     s.Query.Scope,
		ID:        s.Query.ID,
		Version:   s.Version,
		FetchedAt: s.FetchedAt,
		Skipped:   len(s.Skipped),
	}
	if s.Index != nil {
		info.Slots = len(s.Index.Slots)
		info.Entries = len(s.Index.Entries)
	}
	return info
}

func (h *Handler) ListTimetables(c echo.Context) error {
	snaps, err := h.loader.List(c.Request().Context())
	if err != nil {
		return err
	}
	result := make([]snapshotInfo, 0, len(snaps))
	for _, s := range snaps {
		result = append(result, infoOf(s))
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) Reload(c echo.Context) error {
	q, err := h.query(c)
	if err != nil {
		return err
	}
	snap, err := h.loader.Reload(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, infoOf(snap))
}

func (h *Handler) Delete(c echo.Context) error {
	q, err := h.query(c)
	if err != nil {
		return err
	}
	if err := h.loader.Forget(c.Request().Context(), q); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type gridResponse struct {
	snapshotInfo
	Grid domain.Grid `json:"grid"`
}

func (h *Handler) sendGrid(c echo.Context, s *port.Snapshot) error {
	idx := s.Index
	if idx == nil {
		idx = &domain.WeeklyIndex{}
	}
	return c.JSON(http.StatusOK, gridResponse{
		snapshotInfo: infoOf(s),
		Grid:         idx.Grid(daysOf(c), filterOf(c)),
	})
}

// GetGrid returns the week grid. With ?version= equal to the published
// version it waits for a change and answers 304 if none arrives in time.
func (h *Handler) GetGrid(c echo.Context) error {
	q, err := h.query(c)
	if err != nil {
		return err
	}
	clientVersion := c.QueryParam("version")
	ctx := c.Request().Context()

	// Subscribe before reading so a change in between is not lost
	var subCh <-chan struct{}
	if clientVersion != "" {
		subCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		subCh = h.loader.Subscribe(subCtx, q)
	}

	snap, err := h.loader.Ensure(ctx, q)
	if err != nil {
		return err
	}
	if timetable.SnapshotChanged(clientVersion, snap) {
		return h.sendGrid(c, snap)
	}

	timer := time.NewTimer(h.longPollTimeout)
	defer timer.Stop()

	select {
	case <-subCh:
	case <-timer.C:
	case <-ctx.Done():
		return nil
	}
	snap, err = h.loader.Current(ctx, q)
	if err != nil {
		return err
	}
	if timetable.SnapshotChanged(clientVersion, snap) {
		return h.sendGrid(c, snap)
	}
	return c.NoContent(http.StatusNotModified)
}

type slotResponse struct {
	Key       string `json:"key"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Minutes   int    `json:"start_minutes"`
	Duration  int    `json:"duration"`
}

func (h *Handler) GetSlots(c echo.Context) error {
	q, err := h.query(c)
	if err != nil {
		return err
	}
	snap, err := h.loader.Ensure(c.Request().Context(), q)
	if err != nil {
		return err
	}
	slots := make([]slotResponse, 0)
	if snap.Index != nil {
		for _, s := range snap.Index.Slots {
			slots = append(slots, slotResponse{
				Key:       s.Key(),
				StartTime: s.Start.String(),
				EndTime:   s.End.String(),
				Minutes:   s.Start.Minutes(),
				Duration:  s.Duration(),
			})
		}
	}
	skipped := snap.Skipped
	if skipped == nil {
		skipped = []domain.Skipped{}
	}
	return c.JSON(http.StatusOK, echo.Map{"version": snap.Version, "slots": slots, "skipped": skipped})
}

type cellRequest struct {
	Day   string `query:"day" validate:"required"`
	Start string `query:"start" validate:"required"`
	End   string `query:"end" validate:"required"`
}

type cellEntry struct {
	domain.ScheduleEntry
	Match string `json:"match"`
}

type cellResponse struct {
	Day     string           `json:"day"`
	Slot    domain.TimeSlot  `json:"slot"`
	Entries []cellEntry      `json:"entries"`
	Style   domain.CellStyle `json:"style"`
}

func (h *Handler) GetCell(c echo.Context) error {
	q, err := h.query(c)
	if err != nil {
		return err
	}
	var req cellRequest
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	slot, err := domain.NewTimeSlot(req.Start, req.End)
	if err != nil {
		return err
	}
	snap, err := h.loader.Ensure(c.Request().Context(), q)
	if err != nil {
		return err
	}
	idx := snap.Index
	if idx == nil {
		idx = &domain.WeeklyIndex{}
	}
	day := domain.CanonicalDay(req.Day)
	occ := idx.CellFiltered(day, slot, filterOf(c))
	resp := cellResponse{Day: day, Slot: slot, Entries: make([]cellEntry, 0, len(occ)), Style: domain.ClassifyCell(occ)}
	for _, e := range occ {
		resp.Entries = append(resp.Entries, cellEntry{ScheduleEntry: e, Match: domain.Match(e, day, slot).String()})
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetClasses(c echo.Context) error {
	q, err := h.query(c)
	if err != nil {
		return err
	}
	snap, err := h.loader.Ensure(c.Request().Context(), q)
	if err != nil {
		return err
	}
	classes := []domain.ClassRef{}
	batches := []string{}
	if snap.Index != nil {
		if cs := snap.Index.Classes(); cs != nil {
			classes = cs
		}
		if bs := snap.Index.Batches(); bs != nil {
			batches = bs
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"classes": classes, "batches": batches})
}

func newHTTPErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var code int
		var message interface{}

		var httpErr *echo.HTTPError
		var vErrs validator.ValidationErrors
		var fmtErr *domain.FormatError
		var statusErr *StatusError
		switch {
		case errors.As(err, &httpErr):
			code = httpErr.Code
			message = httpErr.Message
		case errors.As(err, &vErrs):
			fields := make(map[string]string, len(vErrs))
			for _, fe := range vErrs {
				fields[strings.ToLower(fe.Field())] = "failed on " + fe.Tag()
			}
			code = http.StatusBadRequest
			message = fields
		case errors.As(err, &fmtErr), errors.Is(err, domain.ErrEmptySlot):
			code = http.StatusBadRequest
			message = err.Error()
		case errors.Is(err, timetable.ErrNotLoaded):
			code = http.StatusNotFound
			message = "timetable not loaded"
		case errors.Is(err, timetable.ErrSuperseded):
			code = http.StatusConflict
			message = timetable.ErrSuperseded.Error()
		case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrPayloadTooLarge), errors.As(err, &statusErr), errors.Is(err, domain.ErrInvalidPayload):
			code = http.StatusBadGateway
			message = err.Error()
			logger.Warn("upstream error", zap.Error(err))
		default:
			code = http.StatusInternalServerError
			message = http.StatusText(code)
			logger.Error("request failed", zap.Error(err), zap.String("uri", c.Request().RequestURI))
		}

		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}
		if c.Response().Committed {
			return
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, message)
		}
		if err != nil {
			logger.Error("write error response", zap.Error(err))
		}
	}
}
