// Package camera turns a room camera's live-stream URL into a still
// image. The cameras in use follow the IP-webcam convention of serving
// the MJPEG stream at /video and a single frame at /shot.jpg on the
// same host, so the snapshot endpoint is derived, not stored.
package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrUnsupportedURL is returned when a live-stream URL does not carry
// the /video path the snapshot derivation relies on.
var ErrUnsupportedURL = errors.New("live-stream URL has no /video path")

// SnapshotURL derives the still-image endpoint from a live-stream URL
// by substituting /shot.jpg for /video.
func SnapshotURL(liveURL string) (string, error) {
	if !strings.Contains(liveURL, "/video") {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedURL, liveURL)
	}
	return strings.Replace(liveURL, "/video", "/shot.jpg", 1), nil
}

// Client fetches snapshots over HTTP.
type Client struct {
	http *http.Client
}

// NewClient returns a snapshot client. The underlying client carries no
// timeout; cancellation comes from the request context.
func NewClient() *Client {
	return &Client{http: &http.Client{}}
}

// Snapshot derives the still-image URL from liveURL, fetches it, and
// returns the image bytes.
func (c *Client) Snapshot(ctx context.Context, liveURL string) ([]byte, error) {
	shotURL, err := SnapshotURL(liveURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, shotURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build snapshot request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch snapshot: camera answered %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}
