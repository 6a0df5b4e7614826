package geography

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/rotisserie/eris"
)

// Fetch downloads and parses a supported-geographies document.
func Fetch(ctx context.Context, client *http.Client, url string) (*Collection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geography: create request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "geography: fetch %s", url)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geography: fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "geography: read %s", url)
	}
	return ParseCollection(data)
}

// Load parses a supported-geographies document from a local file.
func Load(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geography: read %s", path)
	}
	return ParseCollection(data)
}
