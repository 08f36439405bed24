package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/stagebox/service/internal/pending"
	"github.com/stagebox/service/internal/upload"
)

// FieldName is the multipart field the relay reads files from.
const FieldName = "file"

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// relayResponse mirrors the relay's JSON body.
type relayResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	FileIDs []string `json:"fileIds,omitempty"`
	// Error is set instead of Message by errors outside the upload handler,
	// such as a rejected bearer token.
	Error string `json:"error,omitempty"`
}

// HTTPSink uploads each item in its own multipart request to the relay
// endpoint and reports real byte-level progress of the request body.
type HTTPSink struct {
	endpoint string
	token    string
	client   *http.Client
}

// HTTPOption configures an HTTPSink.
type HTTPOption func(*HTTPSink)

// WithToken sends token as a Bearer credential.
func WithToken(token string) HTTPOption {
	return func(s *HTTPSink) { s.token = token }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSink) { s.client = c }
}

// NewHTTPSink returns a sink posting to endpoint, e.g.
// "http://localhost:8080/api/upload".
func NewHTTPSink(endpoint string, opts ...HTTPOption) *HTTPSink {
	s := &HTTPSink{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Minute},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload posts item and returns the file ID assigned by the relay.
func (s *HTTPSink) Upload(ctx context.Context, item pending.Item, progress upload.ProgressFunc) (string, error) {
	body, contentType, err := encodeMultipart(item)
	if err != nil {
		return "", err
	}

	size := int64(body.Len())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint,
		newProgressReader(bytes.NewReader(body.Bytes()), size, progress))
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send upload request: %w", err)
	}
	defer resp.Body.Close()

	var rr relayResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&rr); err != nil {
		return "", fmt.Errorf("upload failed: %s", resp.Status)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices || !rr.Success {
		msg := rr.Message
		if msg == "" {
			msg = rr.Error
		}
		return "", fmt.Errorf("upload failed: %s: %s", resp.Status, msg)
	}
	if len(rr.FileIDs) == 0 {
		return "", fmt.Errorf("upload failed: relay returned no file id")
	}
	return rr.FileIDs[0], nil
}

func encodeMultipart(item pending.Item) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		FieldName, quoteEscaper.Replace(item.Name)))
	contentType := item.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(item.Content); err != nil {
		return nil, "", fmt.Errorf("write form part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &body, mw.FormDataContentType(), nil
}

var _ upload.Sink = (*HTTPSink)(nil)
