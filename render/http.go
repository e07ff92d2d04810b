package render

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
)

const placeholderNotFoundCode = "placeholder_not_found"

// HTTPRenderer calls an external PDF stamping service.
type HTTPRenderer struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRenderer creates a renderer for the service at baseURL.
func NewHTTPRenderer(baseURL string, timeout time.Duration) (*HTTPRenderer, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("renderer base URL is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPRenderer{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type signatureRequest struct {
	Document    []byte    `json:"document"`
	Image       []byte    `json:"image"`
	Placeholder string    `json:"placeholder"`
	StampedAt   time.Time `json:"stamped_at"`
}

type signatureResponse struct {
	Document []byte `json:"document"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// RenderSignature implements Renderer. Byte slices travel base64-encoded.
func (r *HTTPRenderer) RenderSignature(ctx context.Context, doc, image []byte, placeholder string, stampedAt time.Time) ([]byte, error) {
	jsonData, err := json.Marshal(signatureRequest{
		Document:    doc,
		Image:       image,
		Placeholder: placeholder,
		StampedAt:   stampedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/signatures", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		_ = json.Unmarshal(bodyBytes, &apiErr)
		if apiErr.Error == placeholderNotFoundCode ||
			resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnprocessableEntity {
			return nil, fmt.Errorf("%w: %s", ErrPlaceholderNotFound, placeholder)
		}
		return nil, fmt.Errorf("renderer error: %d", resp.StatusCode)
	}

	var apiResp signatureResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(apiResp.Document) == 0 {
		return nil, errors.New("renderer returned an empty document")
	}
	return apiResp.Document, nil
}

// RenderMultipleSignatures implements Renderer
func (r *HTTPRenderer) RenderMultipleSignatures(ctx context.Context, doc []byte, stamps []Stamp) ([]byte, error) {
	return renderEach(ctx, r, doc, stamps)
}
