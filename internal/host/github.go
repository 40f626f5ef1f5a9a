package host

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/go-github/v57/github"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"

	"github.com/jmylchreest/gh-please/internal/security"
	"github.com/jmylchreest/gh-please/internal/version"
)

// maxAssetSize bounds a single downloaded release asset.
const maxAssetSize int64 = 512 * 1024 * 1024

// APIReleaseDownloader downloads release assets through the GitHub REST API.
type APIReleaseDownloader struct {
	client         *github.Client
	downloadClient *http.Client
	logger         hclog.Logger
}

// APIOption configures an APIReleaseDownloader.
type APIOption func(*APIReleaseDownloader) error

// WithBaseURL points the client at a different API endpoint (GitHub Enterprise or tests).
func WithBaseURL(baseURL string) APIOption {
	return func(d *APIReleaseDownloader) error {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return fmt.Errorf("invalid base URL: %w", err)
		}
		d.client.BaseURL = u
		return nil
	}
}

// WithAPILogger sets the logger.
func WithAPILogger(logger hclog.Logger) APIOption {
	return func(d *APIReleaseDownloader) error {
		d.logger = logger
		return nil
	}
}

// NewAPIReleaseDownloader creates a downloader whose API requests are
// authenticated by ts. A nil ts gives anonymous access, which only works for
// public repositories.
func NewAPIReleaseDownloader(ts oauth2.TokenSource, opts ...APIOption) (*APIReleaseDownloader, error) {
	var httpClient *http.Client
	if ts != nil {
		httpClient = oauth2.NewClient(context.Background(), ts)
	}

	d := &APIReleaseDownloader{
		client: github.NewClient(httpClient),
		// Asset redirects go to pre-signed storage URLs that reject extra auth headers.
		downloadClient: &http.Client{},
		logger:         hclog.NewNullLogger(),
	}

	d.client.UserAgent = userAgent()

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Download fetches every asset of the latest release whose name matches pattern.
func (d *APIReleaseDownloader) Download(ctx context.Context, repo, pattern, targetDir string) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}

	release, _, err := d.client.Repositories.GetLatestRelease(ctx, owner, name)
	if err != nil {
		return fmt.Errorf("failed to get latest release: %w", err)
	}

	matched := 0
	for _, asset := range release.Assets {
		ok, err := path.Match(pattern, asset.GetName())
		if err != nil {
			return fmt.Errorf("invalid asset pattern %q: %w", pattern, err)
		}
		if !ok {
			continue
		}
		matched++

		if err := d.downloadAsset(ctx, owner, name, asset, targetDir); err != nil {
			return err
		}
	}

	if matched == 0 {
		return fmt.Errorf("no assets match the file pattern %q in release %s", pattern, release.GetTagName())
	}
	return nil
}

func (d *APIReleaseDownloader) downloadAsset(ctx context.Context, owner, repo string, asset *github.ReleaseAsset, targetDir string) error {
	assetName := asset.GetName()
	if err := security.ValidateFilePath(assetName, targetDir); err != nil || filepath.Base(assetName) != assetName {
		return fmt.Errorf("refusing unsafe asset name %q", assetName)
	}

	d.logger.Debug("downloading release asset", "repo", owner+"/"+repo, "asset", assetName, "size", asset.GetSize())

	rc, redirectURL, err := d.client.Repositories.DownloadReleaseAsset(ctx, owner, repo, asset.GetID(), d.downloadClient)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", assetName, err)
	}
	if rc == nil && redirectURL != "" {
		rc, err = d.fetch(ctx, redirectURL)
		if err != nil {
			return fmt.Errorf("failed to download %s: %w", assetName, err)
		}
	}
	if rc == nil {
		return fmt.Errorf("failed to download %s: empty response", assetName)
	}
	defer rc.Close()

	destPath := filepath.Join(targetDir, assetName)
	out, err := os.Create(destPath) // #nosec G304 - Asset name validated against target directory
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}

	_, copyErr := io.Copy(out, security.NewLimitedReader(rc, maxAssetSize))
	closeErr := out.Close()
	if copyErr != nil {
		return fmt.Errorf("failed to write %s: %w", assetName, copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close %s: %w", assetName, closeErr)
	}
	return nil
}

func (d *APIReleaseDownloader) fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if err := security.ValidateHTTPURL(rawURL); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent())
	resp, err := d.downloadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return resp.Body, nil
}

func userAgent() string {
	return "gh-please/" + version.Version
}
