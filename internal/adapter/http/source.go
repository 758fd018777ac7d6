package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/eduverse/timetable/internal/domain"
	"github.com/eduverse/timetable/internal/port"
)

const maxPayloadBytes = 8 << 20

var (
	// ErrUnauthorized is returned when the API rejects the token.
	ErrUnauthorized = errors.New("please login again to access the timetable")

	// ErrPayloadTooLarge is returned for bodies over the read limit.
	ErrPayloadTooLarge = errors.New("timetable payload too large")
)

// StatusError is a non-200 answer from the timetable API.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("timetable api: %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("timetable api: unexpected status %d", e.Code)
}

// RESTSource fetches timetables from the eduVerse REST API
type RESTSource struct {
	baseURL  string
	token    string
	client   *http.Client
	log      *zap.Logger
	maxBytes int64
}

var _ port.TimetableSource = (*RESTSource)(nil)

func NewRESTSource(baseURL, token string, timeout time.Duration, logger *zap.Logger) *RESTSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RESTSource{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		client:   &http.Client{Timeout: timeout},
		log:      logger.Named("rest_source"),
		maxBytes: maxPayloadBytes,
	}
}

func (s *RESTSource) endpoint(q port.Query) (string, error) {
	params := url.Values{}
	var path string
	switch q.Scope {
	case port.ScopeTeacher:
		path = "/timetable"
		params.Set("teacher_id", q.ID)
	case port.ScopeClass:
		path = "/class-timetable/"
		params.Set("class_id", q.ID)
	case port.ScopeDepartment:
		path = "/timetable"
		params.Set("department_id", q.ID)
	default:
		return "", errors.Errorf("unknown scope %q", q.Scope)
	}
	return s.baseURL + path + "?" + params.Encode(), nil
}

// Fetch GETs the timetable of q. 404 means upstream has no timetable.
func (s *RESTSource) Fetch(ctx context.Context, q port.Query) (*domain.Payload, error) {
	u, err := s.endpoint(q)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", u)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if int64(len(body)) > s.maxBytes {
		return nil, errors.Wrapf(ErrPayloadTooLarge, "GET %s: over %d bytes", u, s.maxBytes)
	}
	s.log.Debug("timetable fetched", zap.String("url", u), zap.Int("status", resp.StatusCode), zap.Int("bytes", len(body)))

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case http.StatusNotFound:
		return nil, nil
	default:
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &apiErr)
		return nil, &StatusError{Code: resp.StatusCode, Message: apiErr.Message}
	}

	p, err := domain.DecodePayload(body)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", u)
	}
	return p, nil
}
