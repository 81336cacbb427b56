// Package pdb fetches protein structures from the RCSB Protein Data Bank.
package pdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Sentinel errors for RCSB fetch failures.
var (
	ErrInvalidID    = errors.New("invalid pdb id")
	ErrNotFound     = errors.New("pdb entry not found")
	ErrUnreachable  = errors.New("rcsb unreachable")
	ErrFetchTimeout = errors.New("rcsb fetch timeout")
)

// maxPDBBytes caps a downloaded structure; the largest PDB entries are a few
// tens of megabytes.
const maxPDBBytes = 64 << 20

var pdbIDPattern = regexp.MustCompile(`^[0-9][A-Za-z0-9]{3}$`)

// Client is the interface for fetching PDB structures.
type Client interface {
	FetchPDB(ctx context.Context, id string) (string, error)
}

// HTTPClient implements Client against RCSB's file download service.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a new RCSB HTTP client.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// FetchPDB downloads the structure file for a four-character PDB id.
func (c *HTTPClient) FetchPDB(ctx context.Context, id string) (string, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if !pdbIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	u := fmt.Sprintf("%s/download/%s.pdb", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", classifyError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPDBBytes))
	if err != nil {
		return "", fmt.Errorf("reading structure body: %w", err)
	}
	return string(body), nil
}

func classifyError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrFetchTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
