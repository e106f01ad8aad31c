package installer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/slok/devdroid/internal/conventions"
	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/runner"
	"github.com/slok/devdroid/internal/step"
)

func (i *Installer) apkCompanions(ctx context.Context, status step.StatusSetter) error {
	apps := i.cfg.CompanionApps
	if len(apps) == 0 {
		status.SetStatus(model.StepStatusSkipped)
		return nil
	}

	estimate := 0
	if s, ok := step.FromContext(ctx); ok {
		estimate = max(runner.MinEstimate, s.EstimatedSeconds/len(apps))
	}

	downloaded := 0
	for _, app := range apps {
		dst := conventions.APKPath(i.dataDir, app.Name)
		if ok, _ := fileMatches(dst, app.SHA256); ok {
			i.logger.Debugf("Companion app %q already downloaded", app.Name)
			continue
		}

		err := i.run(ctx, "Downloading "+app.Name, estimate, runner.WorkFunc(func(ctx context.Context, out io.Writer) error {
			return i.download(ctx, app, dst, out)
		}))
		if err != nil {
			return fmt.Errorf("could not download %s: %w", app.Name, err)
		}
		downloaded++
	}

	if downloaded == 0 {
		status.SetStatus(model.StepStatusSkipped)
		return nil
	}

	i.logger.Infof("Companion apps downloaded to %s, install them from the Android file manager", filepath.Join(i.dataDir, conventions.APKsDir))
	return nil
}

// download fetches the app APK into dst. The file only appears in dst once it has been
// fully downloaded and its checksum matches.
func (i *Installer) download(ctx context.Context, app model.CompanionApp, dst string, out io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, app.URL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, app.URL)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("could not create apks directory: %w", err)
	}

	partPath := dst + ".part"
	f, err := os.Create(partPath)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", partPath, err)
	}
	defer os.Remove(partPath) // No-op after a successful rename.

	h := sha256.New()
	pw := NewProgressWriter(io.MultiWriter(f, h), out, resp.ContentLength)
	_, err = io.Copy(pw, resp.Body)
	pw.Finish()
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing file %s: %w", partPath, err)
	}

	if app.SHA256 != "" {
		got := hex.EncodeToString(h.Sum(nil))
		if !strings.EqualFold(got, app.SHA256) {
			return fmt.Errorf("checksum mismatch for %s: expected %s, got %s: %w", app.Name, app.SHA256, got, model.ErrNotValid)
		}
	}

	if err := os.Rename(partPath, dst); err != nil {
		return fmt.Errorf("could not move download to %s: %w", dst, err)
	}

	return nil
}

// fileMatches returns true if path exists and, when a checksum is given, its content matches it.
func fileMatches(path, sha string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	if sha == "" {
		return true, nil
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, err
	}

	return strings.EqualFold(hex.EncodeToString(h.Sum(nil)), sha), nil
}
