// Package backend is the REST client for the Adonel reports API.
//
// The backend owns TXT parsing, persistence, duplicate detection and aggregation.
// This package only speaks its contract:
//   - POST /vendas/parse-txt-multiplos and /duplicatas/parse-txt-multiplos
//   - POST /vendas/importar-lote and /duplicatas/importar-lote
//   - GET  /unidades
//
// Every request carries the bearer token of the current identity-provider session.
// A 401 response triggers the configured unauthorized handler (sign-out) and is
// returned as an *APIError matching ErrUnauthorized.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"adonel/internal/logger"
	"adonel/pkg/models"
	"adonel/pkg/services"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 32 << 20

// TokenSource supplies the bearer token of the current session.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed token, typically API_TOKEN from the environment.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", ErrMissingToken
	}
	return string(t), nil
}

// Client implements services.ImportService and services.UnitDirectory over HTTP.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	tokens         TokenSource
	onUnauthorized func(ctx context.Context)
	log            zerolog.Logger
}

var (
	_ services.ImportService = (*Client)(nil)
	_ services.UnitDirectory = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout (default 10s).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithUnauthorizedHandler is called once per 401 response, before the error is returned.
func WithUnauthorizedHandler(fn func(ctx context.Context)) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient creates a client for the API rooted at baseURL (e.g. http://localhost:3000/api).
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        logger.WithComponent("backend"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ParseFiles sends all files of one selection in a single request.
func (c *Client) ParseFiles(ctx context.Context, kind models.Kind, files []services.FileContent) (*services.ParseResult, error) {
	const op = "ParseFiles"

	if _, err := models.ParseKind(string(kind)); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: no files to parse", op)
	}

	var env parseEnvelope
	path := "/" + string(kind) + "/parse-txt-multiplos"
	if err := c.do(ctx, op, http.MethodPost, path, parseRequest{Arquivos: files}, &env); err != nil {
		return nil, err
	}
	if env.Resultados == nil {
		return nil, fmt.Errorf("%s: %w: response has no \"resultados\"", op, ErrUnexpectedResponse)
	}

	raw := *env.Resultados
	if len(raw) != len(files) {
		c.log.Warn().
			Str("kind", string(kind)).
			Int("files", len(files)).
			Int("results", len(raw)).
			Msg("Backend returned a different number of results than files sent")
	}

	records := make([]models.Record, 0, len(raw))
	for i, item := range raw {
		fallback := ""
		if i < len(files) {
			fallback = files[i].Name
		}
		records = append(records, decodeRecord(kind, item, fallback))
	}

	c.log.Info().
		Str("kind", string(kind)).
		Int("total", env.Total).
		Int("processed", env.Processados).
		Int("errors", env.Erros).
		Msg("Files parsed by backend")

	return &services.ParseResult{
		Records:   records,
		Total:     env.Total,
		Processed: env.Processados,
		Errors:    env.Erros,
	}, nil
}

// ImportBatch posts a batch to the kind's importar-lote endpoint.
func (c *Client) ImportBatch(ctx context.Context, batch services.Batch) (*services.ImportResult, error) {
	const op = "ImportBatch"

	if _, err := models.ParseKind(string(batch.Kind)); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var resp importResponse
	path := "/" + string(batch.Kind) + "/importar-lote"
	if err := c.do(ctx, op, http.MethodPost, path, encodeBatch(batch), &resp); err != nil {
		return nil, err
	}
	if resp.Importadas == nil || resp.Rejeitadas == nil {
		return nil, fmt.Errorf("%s: %w: missing \"importadas\"/\"rejeitadas\"", op, ErrUnexpectedResponse)
	}

	c.log.Info().
		Str("kind", string(batch.Kind)).
		Int("sent", batch.Len()).
		Int("imported", *resp.Importadas).
		Int("rejected", *resp.Rejeitadas).
		Msg("Batch import completed")

	return &services.ImportResult{Imported: *resp.Importadas, Rejected: *resp.Rejeitadas}, nil
}

// Units lists the units registered in the backend.
func (c *Client) Units(ctx context.Context) ([]models.Unit, error) {
	const op = "Units"

	var units []models.Unit
	if err := c.do(ctx, op, http.MethodGet, "/unidades", nil, &units); err != nil {
		return nil, err
	}
	return units, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, target any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("ngrok-skip-browser-warning", "true")

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		switch {
		case err == nil && token != "":
			req.Header.Set("Authorization", "Bearer "+token)
		case err != nil && !errors.Is(err, ErrMissingToken):
			return fmt.Errorf("%s: failed to obtain session token: %w", op, err)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("op", op).Str("path", path).Msg("Backend request failed")
		return &APIError{Op: op, Message: defaultMessage, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &APIError{Op: op, Status: resp.StatusCode, Message: defaultMessage, Err: err}
	}

	c.log.Debug().
		Str("op", op).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Backend request completed")

	if resp.StatusCode == http.StatusUnauthorized {
		c.log.Warn().Str("op", op).Msg("Backend returned 401, signing out")
		if c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		return &APIError{Op: op, Status: resp.StatusCode, Message: extractMessage(data), Data: data}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Op: op, Status: resp.StatusCode, Message: extractMessage(data), Data: data}
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrUnexpectedResponse, err)
	}
	return nil
}
