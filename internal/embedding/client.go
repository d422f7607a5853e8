package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/safefind/safefind/internal/imaging"
)

const defaultServerURL = "http://localhost:8000"

// Client talks to the face model server, which hosts the detector and the
// embedding network behind a small HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new model server client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultServerURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

// ModelInfo describes the model loaded by the server.
type ModelInfo struct {
	Model      string `json:"model"`
	Pretrained string `json:"pretrained"`
	Dim        int    `json:"dim"`
}

// Version returns the tag that identifies embeddings produced by this model.
func (i *ModelInfo) Version() string {
	if i.Pretrained == "" {
		return i.Model
	}
	return i.Model + "/" + i.Pretrained
}

// FaceDetection represents a single detected face
type FaceDetection struct {
	BBox     []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore float64   `json:"det_score"`
}

// DetectResponse represents the response from the face detection endpoint
type DetectResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
}

// embeddingResponse represents the response from the crop embedding endpoint
type embeddingResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

// postMultipartImage constructs a multipart form with the image data and posts it to the given endpoint.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	mimeType := "application/octet-stream"
	if format, err := imaging.DetectFormat(imageData); err == nil {
		mimeType = format.MIMEType()
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image"`)
	h.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// Info returns the model the server has loaded.
func (c *Client) Info(ctx context.Context) (*ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/info", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var info ModelInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if info.Model == "" {
		return nil, errors.New("model server reported no model")
	}
	return &info, nil
}

// DetectFaces runs the face detector on an encoded image.
func (c *Client) DetectFaces(ctx context.Context, imageData []byte) (*DetectResponse, error) {
	body, err := c.postMultipartImage(ctx, "/detect/face", imageData)
	if err != nil {
		return nil, err
	}

	var detResp DetectResponse
	if err := json.Unmarshal(body, &detResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &detResp, nil
}

// EmbedCrop computes the embedding of an already cropped face image.
func (c *Client) EmbedCrop(ctx context.Context, imageData []byte) ([]float32, error) {
	body, err := c.postMultipartImage(ctx, "/embed/crop", imageData)
	if err != nil {
		return nil, err
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(embResp.Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}

	return embResp.Embedding, nil
}
