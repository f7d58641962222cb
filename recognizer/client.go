// Package recognizer is the HTTP client for the external
// face-recognition service. Images are exchanged by filename over a
// shared uploads volume, never as request bytes.
package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// KnownFace pairs a student's roll identifier with their stored
// embedding, in the shape the recognizer expects.
type KnownFace struct {
	USN       string    `json:"usn"`
	Embedding []float64 `json:"faceEmbedding"`
}

// Recognition is the recognizer's report for one classroom snapshot.
type Recognition struct {
	FacesDetected     int      `json:"faces_detected"`
	UnrecognizedFaces int      `json:"unrecognized_faces"`
	RecognizedUSNs    []string `json:"recognized_usns"`
}

// UpstreamError is a non-2xx answer from the recognizer, carrying the
// service's detail message.
type UpstreamError struct {
	StatusCode int
	Detail     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("recognizer answered %d: %s", e.StatusCode, e.Detail)
}

// Client talks to the recognizer service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the recognizer at baseURL. The
// underlying client carries no timeout; cancellation comes from the
// request context.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

// GenerateEmbedding asks the recognizer to embed the single face in a
// stored registration image. The image must already exist under the
// shared student_pics directory.
func (c *Client) GenerateEmbedding(ctx context.Context, studentID, imageName string) ([]float64, error) {
	u, err := url.Parse(c.baseURL + "/generate-embedding/")
	if err != nil {
		return nil, fmt.Errorf("recognizer url: %w", err)
	}
	q := u.Query()
	q.Set("student_id", studentID)
	q.Set("image_name", imageName)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call recognizer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, upstreamError(resp)
	}

	var result struct {
		USN       string    `json:"usn"`
		Embedding []float64 `json:"faceEmbedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("recognizer returned an empty embedding for %s", studentID)
	}
	return result.Embedding, nil
}

// RecognizeStudents submits a stored classroom snapshot (by filename,
// under the shared class_pics directory) plus the known faces, and
// returns the recognizer's report.
func (c *Client) RecognizeStudents(ctx context.Context, imageName string, known []KnownFace) (*Recognition, error) {
	body, err := json.Marshal(known)
	if err != nil {
		return nil, fmt.Errorf("encode known faces: %w", err)
	}

	endpoint := c.baseURL + "/recognize-students/" + url.PathEscape(imageName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build recognize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call recognizer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, upstreamError(resp)
	}

	var result Recognition
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode recognition response: %w", err)
	}
	return &result, nil
}

// upstreamError extracts the recognizer's {"detail": ...} payload. The
// raw body stands in when the payload has another shape.
func upstreamError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Detail string `json:"detail"`
	}
	detail := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Detail != "" {
		detail = payload.Detail
	}
	return &UpstreamError{StatusCode: resp.StatusCode, Detail: detail}
}
