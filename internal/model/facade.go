// Package model implements ModelFacade, docbert's encoder collaborator. The
// ColBERT-style encoder runs as an external sidecar process reached over
// HTTP, mirroring the teacher's MLX embedder: a health check on first use,
// JSON request/response bodies, and context-scoped per-request timeouts
// rather than a client-wide timeout.
package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"sync"
	"time"

	"github.com/cfcosta/docbert/internal/chunk"
	docerrors "github.com/cfcosta/docbert/internal/errors"
	"github.com/cfcosta/docbert/internal/store"
)

const (
	defaultWarmTimeout  = 30 * time.Second
	defaultColdTimeout  = 120 * time.Second
	defaultMaxRetries   = 2
	sidecarReadyTimeout = 30 * time.Second
	sidecarPollInterval = 100 * time.Millisecond
	maxSidecarPollWait  = 2 * time.Second
)

// Facade is docbert's ModelFacade: encode_query, encode_documents, and
// similarity, with the sidecar lazily warmed on first use.
type Facade struct {
	mu       sync.RWMutex
	client   *http.Client
	endpoint string
	modelID  string
	lock     *loadLock

	// command is the argv used to launch the encoder sidecar if it isn't
	// already listening on endpoint when first used. Empty means the
	// sidecar is assumed to be externally managed.
	command []string
	// docTokenCap bounds per-document token counts sent to
	// encode_documents; non-positive means no cap.
	docTokenCap int

	loaded bool
	dims   int
}

// Option configures optional Facade behavior not covered by NewFacade's
// required arguments.
type Option func(*Facade)

// WithCommand sets the argv used to launch the encoder sidecar on first use
// if it isn't already listening on endpoint (Config.Model.Command).
func WithCommand(command []string) Option {
	return func(f *Facade) { f.command = command }
}

// WithDocumentTokenCap bounds per-document token counts sent to
// encode_documents (Config.Model.DocumentTokenCap). Documents are truncated
// to cap*chunk.CharsPerToken characters before being sent.
func WithDocumentTokenCap(cap int) Option {
	return func(f *Facade) { f.docTokenCap = cap }
}

// NewFacade builds a Facade for the resolved modelID, talking to the sidecar
// at endpoint. dataDir is used only to place the cross-process load lock.
func NewFacade(endpoint, modelID, dataDir string, opts ...Option) *Facade {
	f := &Facade{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		endpoint: endpoint,
		modelID:  modelID,
		lock:     newLoadLock(dataDir),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ModelID returns the encoder identifier this Facade talks to.
func (f *Facade) ModelID() string {
	return f.modelID
}

// IsLoaded reports whether the first health check against the sidecar has
// already succeeded.
func (f *Facade) IsLoaded() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.loaded
}

// ensureLoaded health-checks the sidecar exactly once, serialized across
// processes sharing dataDir by the advisory load lock so two docbert
// invocations don't both try to spin it up at the same moment.
func (f *Facade) ensureLoaded(ctx context.Context) error {
	f.mu.RLock()
	loaded := f.loaded
	f.mu.RUnlock()
	if loaded {
		return nil
	}

	if err := f.lock.Lock(); err != nil {
		return err
	}
	defer f.lock.Unlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loaded {
		return nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultColdTimeout)
	defer cancel()

	if err := f.healthCheck(checkCtx); err != nil {
		if len(f.command) == 0 {
			return docerrors.ModelErrorf(docerrors.CodeModelLoad, err, "encoder sidecar unavailable at %s", f.endpoint)
		}
		if startErr := f.startSidecar(checkCtx); startErr != nil {
			return docerrors.ModelErrorf(docerrors.CodeModelLoad, startErr, "starting encoder sidecar at %s", f.endpoint)
		}
	}
	f.loaded = true
	return nil
}

// startSidecar launches Command in the background and polls /health with
// exponential backoff until it responds or ctx is done.
func (f *Facade) startSidecar(ctx context.Context) error {
	cmd := exec.Command(f.command[0], f.command[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launching %v: %w", f.command, err)
	}
	go func() { _ = cmd.Wait() }()

	waitCtx, cancel := context.WithTimeout(ctx, sidecarReadyTimeout)
	defer cancel()

	interval := sidecarPollInterval
	for {
		if err := f.healthCheck(waitCtx); err == nil {
			return nil
		}
		select {
		case <-waitCtx.Done():
			return fmt.Errorf("timed out waiting for sidecar to become healthy: %w", waitCtx.Err())
		case <-time.After(interval):
		}
		interval *= 2
		if interval > maxSidecarPollWait {
			interval = maxSidecarPollWait
		}
	}
}

func (f *Facade) healthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint+"/health", nil)
	if err != nil {
		return fmt.Errorf("building health check request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to encoder sidecar: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("encoder sidecar unhealthy (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}

type encodeQueryRequest struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

type encodeQueryResponse struct {
	Tokens [][]float32 `json:"tokens"`
}

type encodeDocumentsRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model"`
}

type encodeDocumentsResponse struct {
	Documents [][][]float32 `json:"documents"`
}

// EncodeQuery returns the query's per-token embedding matrix.
func (f *Facade) EncodeQuery(ctx context.Context, text string) (store.Matrix, error) {
	if err := f.ensureLoaded(ctx); err != nil {
		return store.Matrix{}, err
	}

	var resp encodeQueryResponse
	if err := f.postWithRetry(ctx, "/encode_query", encodeQueryRequest{Text: text, Model: f.modelID}, &resp); err != nil {
		return store.Matrix{}, docerrors.ModelErrorf(docerrors.CodeModelEncode, err, "encoding query")
	}
	return tokensToMatrix(resp.Tokens), nil
}

// EncodeDocuments returns one per-token embedding matrix per input text, in
// the same order.
func (f *Facade) EncodeDocuments(ctx context.Context, texts []string) ([]store.Matrix, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := f.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	if f.docTokenCap > 0 {
		texts = capDocumentTexts(texts, f.docTokenCap)
	}

	var resp encodeDocumentsResponse
	if err := f.postWithRetry(ctx, "/encode_documents", encodeDocumentsRequest{Texts: texts, Model: f.modelID}, &resp); err != nil {
		return nil, docerrors.ModelErrorf(docerrors.CodeModelEncode, err, "encoding %d documents", len(texts))
	}

	matrices := make([]store.Matrix, len(resp.Documents))
	for i, tokens := range resp.Documents {
		matrices[i] = tokensToMatrix(tokens)
	}
	return matrices, nil
}

// Similarity computes MaxSim between a query matrix and a document matrix.
// The model must already be loaded via a prior EncodeQuery/EncodeDocuments
// call.
func (f *Facade) Similarity(query, document store.Matrix) (float64, error) {
	if !f.IsLoaded() {
		return 0, docerrors.ModelErrorf(docerrors.CodeModelSimilarity, nil, "model not loaded")
	}
	return MaxSim(query, document), nil
}

// capDocumentTexts truncates each text to tokenCap tokens, approximated the
// same way chunk.Split budgets characters per token.
func capDocumentTexts(texts []string, tokenCap int) []string {
	maxChars := tokenCap * chunk.CharsPerToken
	capped := make([]string, len(texts))
	for i, t := range texts {
		if r := []rune(t); len(r) > maxChars {
			t = string(r[:maxChars])
		}
		capped[i] = t
	}
	return capped
}

func tokensToMatrix(tokens [][]float32) store.Matrix {
	if len(tokens) == 0 {
		return store.Matrix{}
	}
	d := len(tokens[0])
	data := make([]float32, 0, len(tokens)*d)
	for _, t := range tokens {
		data = append(data, t...)
	}
	return store.Matrix{T: len(tokens), D: d, Data: data}
}

func (f *Facade) postWithRetry(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < defaultMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, defaultWarmTimeout)
		err := f.doPost(reqCtx, path, payload, out)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("after %d attempts: %w", defaultMaxRetries, lastErr)
}

func (f *Facade) doPost(ctx context.Context, path string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s failed (status %d): %s", path, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// Close releases idle HTTP connections.
func (f *Facade) Close() error {
	if t, ok := f.client.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
	return nil
}
