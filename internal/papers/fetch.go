// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package papers

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zouly-group/tadf-workbench/internal/httputil"
	"github.com/zouly-group/tadf-workbench/pkg/types"
)

// Endpoints are vars so tests can substitute an httptest server.
var (
	openAlexAPIBase = "https://api.openalex.org/works/"
	crossrefAPIBase = "https://api.crossref.org/works/"
	arxivAPIBase    = "https://export.arxiv.org/api/query"
	arxivPDFBase    = "https://arxiv.org/pdf/"
)

// ErrNoOpenAccess is returned when a DOI has no open-access PDF.
var ErrNoOpenAccess = errors.New("no open-access PDF")

// userAgent identifies the workbench to the metadata services.
const userAgent = "tadf-workbench"

// Fetcher downloads open-access PDFs for DOIs and arXiv ids.
type Fetcher struct {
	client *http.Client
	policy httputil.Policy
	dir    string
	mailto string
	delay  time.Duration
}

// NewFetcher returns a fetcher writing PDFs to cfg.PapersDir.
func NewFetcher(cfg types.FetchConfig) *Fetcher {
	return &Fetcher{
		client: httputil.NewClient(cfg.HTTPConfig),
		policy: httputil.PolicyFrom(cfg.HTTPConfig),
		dir:    cfg.PapersDir,
		mailto: cfg.Mailto,
		delay:  cfg.DownloadDelay,
	}
}

// FetchResult holds the outcome of a batch fetch.
type FetchResult struct {
	Downloaded int
	Skipped    int
	Failed     int
	Papers     []types.Paper
}

// Total returns the number of identifiers processed.
func (r FetchResult) Total() int { return r.Downloaded + r.Skipped + r.Failed }

// HasFailures reports whether any identifier failed.
func (r FetchResult) HasFailures() bool { return r.Failed > 0 }

// Fetch resolves identifier to a PDF URL, downloads it to <dir>/<id>.pdf
// unless that file exists, and returns the paper with its DOI and title
// filled where the metadata service answered. skipped reports an existing
// file.
func (f *Fetcher) Fetch(ctx context.Context, identifier string, w io.Writer) (p types.Paper, skipped bool, err error) {
	kind, normalized := Classify(identifier)

	var pdfURL string
	switch kind {
	case TypeDOI:
		p.DOI = normalized
		p.ID, err = ID(normalized, "")
	case TypeArxiv:
		p.ID, err = ID("", normalized+".pdf")
		pdfURL = arxivPDFBase + normalized
	default:
		return p, false, fmt.Errorf("%q is neither a DOI nor an arXiv id", identifier)
	}
	if err != nil {
		return p, false, err
	}
	p.PDFPath = filepath.Join(f.dir, p.ID+".pdf")

	if _, err := os.Stat(p.PDFPath); err == nil {
		fmt.Fprintf(w, "skipped: %s (already exists)\n", p.ID)
		return p, true, nil
	}

	if kind == TypeDOI {
		pdfURL, err = f.resolveOpenAlex(ctx, normalized)
		if err != nil {
			return p, false, fmt.Errorf("resolving %s: %w", normalized, err)
		}
	}

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return p, false, fmt.Errorf("creating directory %s: %w", f.dir, err)
	}
	fmt.Fprintf(w, "downloading: %s (%s)\n", p.ID, kind)
	if err := f.download(ctx, pdfURL, p.PDFPath); err != nil {
		return p, false, fmt.Errorf("downloading %s: %w", p.ID, err)
	}

	var title string
	switch kind {
	case TypeDOI:
		title, err = f.crossrefTitle(ctx, normalized)
	case TypeArxiv:
		title, err = f.arxivTitle(ctx, normalized)
	}
	if err != nil {
		fmt.Fprintf(w, "  warning: %s metadata fetch failed: %v\n", kind, err)
	}
	p.Title = title
	return p, false, nil
}

// FetchBatch fetches each identifier in turn, continuing after failures
// and spacing consecutive downloads by the configured delay.
func (f *Fetcher) FetchBatch(ctx context.Context, identifiers []string, w io.Writer) FetchResult {
	var result FetchResult
	for i, id := range identifiers {
		if i > 0 && f.delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(f.delay):
			}
		}
		if ctx.Err() != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", id, ctx.Err())
			result.Failed++
			continue
		}
		p, skipped, err := f.Fetch(ctx, id, w)
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", id, err)
			result.Failed++
			continue
		}
		if skipped {
			result.Skipped++
		} else {
			result.Downloaded++
		}
		result.Papers = append(result.Papers, p)
	}
	fmt.Fprintf(w, "\nBatch summary: %d downloaded, %d skipped, %d failed (total: %d)\n",
		result.Downloaded, result.Skipped, result.Failed, result.Total())
	return result
}

func (f *Fetcher) get(ctx context.Context, rawURL, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := httputil.DoWithRetry(ctx, f.client, req, f.policy)
	if err != nil {
		return nil, err
	}
	if err := httputil.CheckResponse(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// withMailto adds the polite-pool contact to a metadata query.
func (f *Fetcher) withMailto(rawURL string) string {
	if f.mailto == "" {
		return rawURL
	}
	return rawURL + "?mailto=" + url.QueryEscape(f.mailto)
}

type openAlexWork struct {
	BestOALocation *struct {
		PDFURL string `json:"pdf_url"`
	} `json:"best_oa_location"`
}

// resolveOpenAlex returns the open-access PDF URL OpenAlex lists for doi.
func (f *Fetcher) resolveOpenAlex(ctx context.Context, doi string) (string, error) {
	resp, err := f.get(ctx, f.withMailto(openAlexAPIBase+"https://doi.org/"+doi), "application/json")
	if err != nil {
		return "", fmt.Errorf("OpenAlex: %w", err)
	}
	defer resp.Body.Close()

	var work openAlexWork
	if err := json.NewDecoder(resp.Body).Decode(&work); err != nil {
		return "", fmt.Errorf("parsing OpenAlex response: %w", err)
	}
	if work.BestOALocation == nil || work.BestOALocation.PDFURL == "" {
		return "", ErrNoOpenAccess
	}
	return work.BestOALocation.PDFURL, nil
}

type crossrefResponse struct {
	Message struct {
		Title []string `json:"title"`
	} `json:"message"`
}

func (f *Fetcher) crossrefTitle(ctx context.Context, doi string) (string, error) {
	resp, err := f.get(ctx, f.withMailto(crossrefAPIBase+doi), "application/json")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var cr crossrefResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("parsing CrossRef response: %w", err)
	}
	if len(cr.Message.Title) == 0 {
		return "", nil
	}
	return strings.TrimSpace(cr.Message.Title[0]), nil
}

type arxivFeed struct {
	Entries []struct {
		Title string `xml:"title"`
	} `xml:"entry"`
}

func (f *Fetcher) arxivTitle(ctx context.Context, id string) (string, error) {
	resp, err := f.get(ctx, arxivAPIBase+"?id_list="+url.QueryEscape(id), "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return "", fmt.Errorf("parsing arXiv response: %w", err)
	}
	if len(feed.Entries) == 0 {
		return "", fmt.Errorf("no entries for arXiv id %s", id)
	}
	return strings.Join(strings.Fields(feed.Entries[0].Title), " "), nil
}

// download writes rawURL to destPath through a temporary file renamed on
// success.
func (f *Fetcher) download(ctx context.Context, rawURL, destPath string) error {
	resp, err := f.get(ctx, rawURL, "application/pdf")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".fetch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
