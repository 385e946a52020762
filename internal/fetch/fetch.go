// Package fetch downloads release artifacts into the staging area.
// Any non-success transfer aborts the run; partially downloaded files
// are removed.
package fetch

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/magicbot/signal-rpm-packager/internal/errdefs"
	"github.com/magicbot/signal-rpm-packager/internal/utils/logger"
)

// File downloads a single URL to destPath with a byte progress bar.
func File(url, destPath string) error {
	log := logger.Logger()
	log.Infof("Downloading %s", url)

	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", errdefs.ErrDownloadFailed, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: GET %s: bad status %s", errdefs.ErrDownloadFailed, url, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("creating download directory: %w", err)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", destPath, err)
	}
	defer out.Close()

	bar := progressbar.NewOptions64(resp.ContentLength,
		progressbar.OptionSetDescription(fmt.Sprintf("downloading %s", path.Base(url))),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(true),
		progressbar.OptionThrottle(100*time.Millisecond),
	)

	if _, err := io.Copy(io.MultiWriter(out, bar), resp.Body); err != nil {
		out.Close()
		os.Remove(destPath)
		return fmt.Errorf("%w: writing %s: %v", errdefs.ErrDownloadFailed, destPath, err)
	}
	_ = bar.Finish()

	return nil
}
