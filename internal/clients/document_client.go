package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"roles-service/internal/apperrors"
)

// DocumentClientInterface is the blob-storage collaborator. Files are
// only handed over after local type and size validation.
type DocumentClientInterface interface {
	Store(ctx context.Context, tenantID string, ownerID uuid.UUID, filename string, data []byte) (string, error)
}

// DocumentClient talks to the document service over HTTP.
type DocumentClient struct {
	baseURL    string
	bucket     string
	httpClient *http.Client
}

// NewDocumentClient creates a client for the document service. The
// timeout bounds every upload; expiry surfaces as a RetryableError.
func NewDocumentClient(baseURL, bucket string, timeout time.Duration) *DocumentClient {
	if bucket == "" {
		bucket = "role-request-attachments"
	}
	return &DocumentClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		bucket:  bucket,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type storeResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

// Store uploads one file and returns the storage reference.
func (c *DocumentClient) Store(ctx context.Context, tenantID string, ownerID uuid.UUID, filename string, data []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	writer.WriteField("bucket", c.bucket)
	writer.WriteField("owner_id", ownerID.String())

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to copy file: %w", err)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/documents/upload", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Tenant-ID", tenantID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isClientTimeout(err) {
			return "", apperrors.NewRetryableError("document upload", err)
		}
		return "", fmt.Errorf("document service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("document service returned status %d", resp.StatusCode)
	}

	var out storeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode document service response: %w", err)
	}
	if out.Data.Reference == "" {
		return "", fmt.Errorf("document service returned no reference")
	}
	return out.Data.Reference, nil
}

func isClientTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
