package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/internal/bol"
	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/internal/queue"
)

// FileFieldName is the multipart field name the endpoint's parser expects
// for every binary part. Fixed, not per-file.
const FileFieldName = "files"

// DeliveryError is any failed delivery attempt: a non-2xx response or a
// transport error. Recoverable by definition — the job stays queued and the
// next trigger retries it.
type DeliveryError struct {
	StatusCode int
	Transport  bool
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Transport {
		return fmt.Sprintf("upload request failed in transport: %v", e.Err)
	}
	return fmt.Sprintf("upload endpoint returned status %d", e.StatusCode)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Client posts queued jobs to the upload endpoint.
type Client struct {
	httpClient *http.Client

	mu       sync.RWMutex
	endpoint string
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetEndpoint swaps the endpoint URL at runtime (settings update).
func (c *Client) SetEndpoint(endpoint string) {
	c.mu.Lock()
	c.endpoint = endpoint
	c.mu.Unlock()
}

func (c *Client) Endpoint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endpoint
}

// Deliver posts one job as a multipart request. A 2xx response is full
// success; anything else comes back as a *DeliveryError.
func (c *Client) Deliver(ctx context.Context, job *queue.Job) error {
	body, contentType, err := buildMultipartBody(job)
	if err != nil {
		return fmt.Errorf("build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), body)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &DeliveryError{Transport: true, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &DeliveryError{StatusCode: resp.StatusCode}
	}
	return nil
}

// Ping probes endpoint reachability. Any HTTP response counts as online;
// only a transport failure means offline.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.Endpoint(), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
	return nil
}

func buildMultipartBody(job *queue.Job) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	fields := map[string]string{
		"company":        job.Metadata.Company,
		"load_id":        job.LoadID(),
		"driver_name":    job.Metadata.DriverName,
		"load_number":    job.Metadata.LoadNumber,
		"bol_number":     job.Metadata.BOLNumber,
		"pickup_city":    job.Metadata.PickupCity,
		"pickup_state":   job.Metadata.PickupState,
		"delivery_city":  job.Metadata.DeliveryCity,
		"delivery_state": job.Metadata.DeliveryState,
		"description":    job.Metadata.Description,
		"document_type":  job.Metadata.DocumentType,
		"job_id":         job.ID,
		"schema_version": strconv.Itoa(job.SchemaVersion),
		"created_at":     job.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if carrier, ok := bol.CarrierByCode(job.Metadata.Company); ok {
		fields["tenant_tag"] = carrier.TenantTag
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}

	for _, att := range job.Attachments {
		part, err := createFilePart(w, att)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(att.Content); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

// createFilePart writes the part header by hand so each attachment keeps
// its captured MIME type; CreateFormFile would force octet-stream.
func createFilePart(w *multipart.Writer, att bol.Attachment) (io.Writer, error) {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		FileFieldName, escapeQuotes(att.Name)))
	contentType := att.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	return w.CreatePart(header)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
