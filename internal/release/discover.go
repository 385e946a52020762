// Package release discovers the latest stable upstream version. The
// structured release API is queried first; the human releases page is
// scraped only when the API path is unusable.
package release

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/magicbot/signal-rpm-packager/internal/errdefs"
	"github.com/magicbot/signal-rpm-packager/internal/utils/logger"
)

// Release mirrors the fields of the release-listing API we filter on.
type Release struct {
	TagName    string `json:"tag_name"`
	Prerelease bool   `json:"prerelease"`
	Draft      bool   `json:"draft"`
}

var stableTag = regexp.MustCompile(`^v?(\d+(?:\.\d+){1,3})$`)

// pageTag matches release tag links on the human releases page.
var pageTag = regexp.MustCompile(`/releases/tag/v?(\d+(?:\.\d+){1,3})["'<]`)

// Client resolves the latest stable version for one repository.
type Client struct {
	// APIBase is the release API root, e.g. https://api.github.com.
	APIBase string
	// Repo is the owner/name pair.
	Repo string
	// PageURL is the releases page used as the scrape fallback.
	PageURL string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// LatestVersion returns the newest stable version, without any leading
// "v". The API failing or yielding nothing falls through to the page
// scrape; only both paths coming up empty aborts discovery.
func (c *Client) LatestVersion() (string, error) {
	log := logger.Logger()

	version, err := c.latestFromAPI()
	if err == nil && version != "" {
		log.Infof("Discovered latest version %s via release API", version)
		return version, nil
	}
	if err != nil {
		log.Warnf("Release API unusable, falling back to page scrape: %v", err)
	}

	version, err = c.latestFromPage()
	if err != nil {
		return "", fmt.Errorf("%w: %v", errdefs.ErrVersionDiscoveryFailed, err)
	}
	log.Infof("Discovered latest version %s via releases page", version)
	return version, nil
}

// latestFromAPI walks the release list (newest first) and returns the
// first non-draft, non-prerelease entry with a numeric tag.
func (c *Client) latestFromAPI() (string, error) {
	url := fmt.Sprintf("%s/repos/%s/releases", strings.TrimRight(c.APIBase, "/"), c.Repo)

	resp, err := c.httpClient().Get(url)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading release list: %w", err)
	}

	var releases []Release
	if err := json.Unmarshal(body, &releases); err != nil {
		return "", fmt.Errorf("parsing release list: %w", err)
	}

	for _, rel := range releases {
		if rel.Draft || rel.Prerelease {
			continue
		}
		if m := stableTag.FindStringSubmatch(rel.TagName); m != nil {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("no stable release tag in %d entries", len(releases))
}

// latestFromPage scrapes the releases page for the first tag link.
func (c *Client) latestFromPage() (string, error) {
	resp, err := c.httpClient().Get(c.PageURL)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", c.PageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: unexpected status %s", c.PageURL, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading releases page: %w", err)
	}

	if m := pageTag.FindSubmatch(body); m != nil {
		return string(m[1]), nil
	}
	return "", fmt.Errorf("no release tag link found on %s", c.PageURL)
}
