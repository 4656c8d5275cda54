package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bitlabs/talentstream-proctor/internal/model"
	"github.com/rs/zerolog"
)

// maxErrorBody bounds how much of a failed response is kept for logging.
const maxErrorBody = 2 << 10

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
}

// StatusCode extracts the HTTP status from err, if it carries one.
func StatusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}

// Client talks to the bitLabs REST backend with the learner's bearer token.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a Client for baseURL.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "upstream").Logger(),
	}
}

// GetTestByName loads the question set of a named test.
func (c *Client) GetTestByName(ctx context.Context, token, testName string) (*model.TestDefinition, error) {
	var def model.TestDefinition
	path := "/test/getTestByName/" + url.PathEscape(testName)
	if err := c.do(ctx, http.MethodGet, path, token, nil, &def); err != nil {
		return nil, err
	}
	if def.TestName == "" {
		def.TestName = testName
	}
	return &def, nil
}

// SaveTestResult records a scored General Aptitude or Technical test.
func (c *Client) SaveTestResult(ctx context.Context, token string, userID int, rec model.TestResultRecord) error {
	path := "/applicant1/saveTest/" + strconv.Itoa(userID)
	return c.do(ctx, http.MethodPost, path, token, rec, nil)
}

// SaveSkillBadge records the verdict of any other named test.
func (c *Client) SaveSkillBadge(ctx context.Context, token string, rec model.SkillBadgeRecord) error {
	return c.do(ctx, http.MethodPost, "/skill-badges/save", token, rec, nil)
}

// UpdateCRM pushes an outcome to the CRM record of zohoUserID.
func (c *Client) UpdateCRM(ctx context.Context, token, zohoUserID string, payload any) error {
	path := "/zoho/update/" + url.PathEscape(zohoUserID)
	return c.do(ctx, http.MethodPut, path, token, payload, nil)
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("Backend call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: string(snippet)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
