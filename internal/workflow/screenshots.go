package workflow

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/valksor/go-adw/internal/log"
)

// ScreenshotUploader publishes review screenshots and returns the URL for
// each path it handled. Paths it could not publish are left out.
type ScreenshotUploader interface {
	Upload(ctx context.Context, adwID string, paths []string) (map[string]string, error)
}

// LocalUploader "publishes" screenshots as file:// URLs of the files in
// place. Relative paths are resolved against Root.
type LocalUploader struct {
	Root string
}

// Upload implements ScreenshotUploader.
func (u LocalUploader) Upload(_ context.Context, _ string, paths []string) (map[string]string, error) {
	out := make(map[string]string, len(paths))
	for _, p := range paths {
		full := p
		if !filepath.IsAbs(full) {
			full = filepath.Join(u.Root, p)
		}
		if _, err := os.Stat(full); err != nil {
			log.Debug("screenshot not found", "path", p)

			continue
		}
		abs, err := filepath.Abs(full)
		if err != nil {
			continue
		}
		out[p] = (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
	}

	return out, nil
}

// localPath turns a file:// URL back into a path. Other values are
// returned unchanged.
func localPath(s string) string {
	if !strings.HasPrefix(s, "file://") {
		return s
	}
	u, err := url.Parse(s)
	if err != nil {
		return strings.TrimPrefix(s, "file://")
	}

	return filepath.FromSlash(u.Path)
}

// recordScreenshots maps the screenshots of res to URLs and stores the
// overall ones in the state for the document stage.
func (r *run) recordScreenshots(ctx context.Context, res *ReviewResult) error {
	paths := append([]string(nil), res.Screenshots...)
	for _, i := range res.Issues {
		if i.ScreenshotPath != "" {
			paths = append(paths, i.ScreenshotPath)
		}
	}
	if len(paths) == 0 {
		return nil
	}

	urls, err := r.w.opts.Screenshots.Upload(ctx, r.st.ADWID, paths)
	if err != nil {
		log.Warn("screenshot upload failed", log.Err(err))

		return nil
	}

	res.ScreenshotURLs = make([]string, len(res.Screenshots))
	for i, p := range res.Screenshots {
		res.ScreenshotURLs[i] = urls[p]
	}
	for i := range res.Issues {
		if p := res.Issues[i].ScreenshotPath; p != "" {
			res.Issues[i].ScreenshotURL = urls[p]
		}
	}
	log.Info("screenshots mapped", "files", len(urls))

	var kept []string
	for _, u := range res.ScreenshotURLs {
		if u != "" {
			kept = append(kept, u)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	r.st.ReviewScreenshots = kept

	return r.save()
}

// screenshotImagePattern matches the image files a reviewer saves.
const screenshotImagePattern = "**/*.{png,jpg,jpeg,gif,webp}"

// findScreenshotDir returns the directory holding this run's review
// screenshots: the directory of the first recorded screenshot, otherwise
// agents/<adw_id>/reviewer/review_img when it contains images.
func (r *run) findScreenshotDir() string {
	if len(r.st.ReviewScreenshots) > 0 {
		return filepath.Dir(localPath(r.st.ReviewScreenshots[0]))
	}

	dir := filepath.Join(r.w.opts.Store.Dir(r.st.ADWID), AgentReviewer, "review_img")
	matches, err := doublestar.Glob(os.DirFS(dir), screenshotImagePattern)
	if err != nil || len(matches) == 0 {
		return ""
	}

	return dir
}

// describeScreenshots is used in log lines.
func describeScreenshots(dir string) string {
	if dir == "" {
		return "none"
	}

	return fmt.Sprintf("%q", dir)
}
