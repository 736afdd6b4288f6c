// Package fetch retrieves surface-reflectance archives from an HTTP
// directory listing.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/vegetation.report/internal/fsutil"
	"github.com/banshee-data/vegetation.report/internal/metrics"
	"github.com/banshee-data/vegetation.report/internal/timeutil"
)

const downloadAttempts = 3

// Client downloads raster files from an archive directory listing.
type Client struct {
	HTTP      *http.Client
	FS        fsutil.FileSystem
	Clock     timeutil.Clock
	Metrics   *metrics.Collector
	Workers   int
	Overwrite bool
}

// Result is the accounting of one Download call.
type Result struct {
	Downloaded int
	Skipped    int
	Failed     int
}

func (c *Client) http() *http.Client {
	if c.HTTP == nil {
		return &http.Client{Timeout: 5 * time.Minute}
	}
	return c.HTTP
}

func (c *Client) fs() fsutil.FileSystem {
	if c.FS == nil {
		return fsutil.OSFileSystem{}
	}
	return c.FS
}

func (c *Client) clock() timeutil.Clock {
	if c.Clock == nil {
		return timeutil.RealClock{}
	}
	return c.Clock
}

func (c *Client) workers() int {
	if c.Workers < 1 {
		return 1
	}
	return c.Workers
}

// ListFiles scrapes the directory listing at baseURL and returns the
// absolute URLs of its .nc entries, deduplicated and sorted by name.
func (c *Client) ListFiles(ctx context.Context, baseURL string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("fetch: parse base url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: list %s: %w", baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch: list %s: status %s", baseURL, resp.Status)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch: parse listing: %w", err)
	}

	seen := make(map[string]bool)
	var urls []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if !strings.EqualFold(path.Ext(attr.Val), ".nc") {
					continue
				}
				ref, err := url.Parse(attr.Val)
				if err != nil {
					continue
				}
				abs := base.ResolveReference(ref).String()
				if !seen[abs] {
					seen[abs] = true
					urls = append(urls, abs)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	sort.Strings(urls)
	return urls, nil
}

// Download fetches the given URLs into destDir with bounded parallelism.
// Existing files are skipped unless Overwrite is set; partially written
// files are removed on failure. Individual failures never abort the
// remaining downloads.
func (c *Client) Download(ctx context.Context, urls []string, destDir string) (Result, error) {
	if err := c.fs().MkdirAll(destDir, 0755); err != nil {
		return Result{}, fmt.Errorf("fetch: create %s: %w", destDir, err)
	}

	var mu sync.Mutex
	var res Result

	var g errgroup.Group
	g.SetLimit(c.workers())
	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcome := c.fetchOne(ctx, u, destDir)
			mu.Lock()
			switch outcome {
			case "downloaded":
				res.Downloaded++
			case "skipped":
				res.Skipped++
			default:
				res.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	log.Printf("fetch: %d downloaded, %d skipped, %d failed of %d files",
		res.Downloaded, res.Skipped, res.Failed, len(urls))
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

func (c *Client) fetchOne(ctx context.Context, fileURL, destDir string) string {
	name := path.Base(fileURL)
	dest := filepath.Join(destDir, name)

	// A zero-byte leftover is treated as absent and fetched again.
	if !c.Overwrite {
		if info, err := c.fs().Stat(dest); err == nil && info.Size() > 0 {
			log.Printf("fetch: %s exists (%d bytes), skipping", name, info.Size())
			c.Metrics.RecordDownload("skipped", 0)
			return "skipped"
		}
	}

	var lastErr error
	for attempt := 1; attempt <= downloadAttempts; attempt++ {
		if attempt > 1 {
			c.clock().Sleep(time.Duration(attempt-1) * time.Second)
		}
		n, err := c.downloadTo(ctx, fileURL, dest)
		if err == nil {
			log.Printf("fetch: downloaded %s (%d bytes)", name, n)
			c.Metrics.RecordDownload("downloaded", n)
			return "downloaded"
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	log.Printf("fetch: %s failed after %d attempts: %v", name, downloadAttempts, lastErr)
	c.Metrics.RecordDownload("failed", 0)
	return "failed"
}

// downloadTo streams one URL to dest, removing the partial file on any
// error.
func (c *Client) downloadTo(ctx context.Context, fileURL, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("status %s", resp.Status)
	}

	f, err := c.fs().Create(dest)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if rmErr := c.fs().Remove(dest); rmErr != nil {
			log.Printf("fetch: could not remove partial file %s: %v", dest, rmErr)
		}
		return 0, err
	}
	return n, nil
}
