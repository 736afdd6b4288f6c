package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/vegetation.report/internal/fsutil"
	"github.com/banshee-data/vegetation.report/internal/timeutil"
)

const listingHTML = `<html><body><pre>
<a href="../">Parent Directory</a>
<a href="avhrr_19900101_v5.nc">avhrr_19900101_v5.nc</a>
<a href="avhrr_19900201_v5.nc">avhrr_19900201_v5.nc</a>
<a href="avhrr_19900101_v5.nc">duplicate</a>
<a href="checksums.txt">checksums.txt</a>
</pre></body></html>`

func TestListFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(listingHTML))
	}))
	defer srv.Close()

	c := &Client{HTTP: srv.Client()}
	urls, err := c.ListFiles(context.Background(), srv.URL+"/data/")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}

	want := []string{
		srv.URL + "/data/avhrr_19900101_v5.nc",
		srv.URL + "/data/avhrr_19900201_v5.nc",
	}
	if diff := cmp.Diff(want, urls); diff != "" {
		t.Errorf("urls mismatch (-want +got):\n%s", diff)
	}
}

func TestListFilesBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := &Client{HTTP: srv.Client()}
	if _, err := c.ListFiles(context.Background(), srv.URL); err == nil {
		t.Error("expected error for 404 listing")
	}
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("netcdf-payload:" + r.URL.Path))
	}))
	defer srv.Close()

	fsys := fsutil.NewMemoryFileSystem()
	c := &Client{HTTP: srv.Client(), FS: fsys, Workers: 2}

	urls := []string{
		srv.URL + "/avhrr_19900101_v5.nc",
		srv.URL + "/avhrr_19900201_v5.nc",
	}
	res, err := c.Download(context.Background(), urls, "/downloads")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if res.Downloaded != 2 || res.Skipped != 0 || res.Failed != 0 {
		t.Errorf("result = %+v, want 2 downloaded", res)
	}

	data, err := fsys.ReadFile("/downloads/avhrr_19900101_v5.nc")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "avhrr_19900101_v5.nc") {
		t.Errorf("file content = %q", data)
	}
}

func TestDownloadSkipsExisting(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("fresh"))
	}))
	defer srv.Close()

	fsys := fsutil.NewMemoryFileSystem()
	if err := fsys.WriteFile("/downloads/avhrr_19900101_v5.nc", []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	c := &Client{HTTP: srv.Client(), FS: fsys}
	res, err := c.Download(context.Background(), []string{srv.URL + "/avhrr_19900101_v5.nc"}, "/downloads")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if res.Skipped != 1 || hits.Load() != 0 {
		t.Errorf("result = %+v, hits = %d; want skip without request", res, hits.Load())
	}

	data, _ := fsys.ReadFile("/downloads/avhrr_19900101_v5.nc")
	if string(data) != "old" {
		t.Errorf("existing file was overwritten: %q", data)
	}
}

func TestDownloadReplacesEmptyFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fresh"))
	}))
	defer srv.Close()

	fsys := fsutil.NewMemoryFileSystem()
	if err := fsys.WriteFile("/downloads/avhrr_19900101_v5.nc", nil, 0644); err != nil {
		t.Fatal(err)
	}

	c := &Client{HTTP: srv.Client(), FS: fsys}
	res, err := c.Download(context.Background(), []string{srv.URL + "/avhrr_19900101_v5.nc"}, "/downloads")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if res.Downloaded != 1 || res.Skipped != 0 {
		t.Errorf("result = %+v, want empty file re-downloaded", res)
	}

	data, _ := fsys.ReadFile("/downloads/avhrr_19900101_v5.nc")
	if string(data) != "fresh" {
		t.Errorf("file = %q, want fresh content", data)
	}
}

func TestDownloadOverwrite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fresh"))
	}))
	defer srv.Close()

	fsys := fsutil.NewMemoryFileSystem()
	if err := fsys.WriteFile("/downloads/avhrr_19900101_v5.nc", []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	c := &Client{HTTP: srv.Client(), FS: fsys, Overwrite: true}
	res, err := c.Download(context.Background(), []string{srv.URL + "/avhrr_19900101_v5.nc"}, "/downloads")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if res.Downloaded != 1 {
		t.Errorf("result = %+v, want 1 downloaded", res)
	}

	data, _ := fsys.ReadFile("/downloads/avhrr_19900101_v5.nc")
	if string(data) != "fresh" {
		t.Errorf("file = %q, want overwritten content", data)
	}
}

func TestDownloadFailureRemovesPartialAndRetries(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	fsys := fsutil.NewMemoryFileSystem()
	clock := timeutil.NewMockClock(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	c := &Client{HTTP: srv.Client(), FS: fsys, Clock: clock}

	res, err := c.Download(context.Background(), []string{srv.URL + "/avhrr_19900101_v5.nc"}, "/downloads")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if res.Failed != 1 {
		t.Errorf("result = %+v, want 1 failed", res)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
	if len(clock.Sleeps()) != 2 {
		t.Errorf("backoff sleeps = %v, want 2", clock.Sleeps())
	}
	if fsys.Exists("/downloads/avhrr_19900101_v5.nc") {
		t.Error("partial file left behind after failure")
	}
}

func TestDownloadOneFailureDoesNotAbortOthers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "broken") {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	fsys := fsutil.NewMemoryFileSystem()
	clock := timeutil.NewMockClock(time.Now())
	c := &Client{HTTP: srv.Client(), FS: fsys, Clock: clock, Workers: 3}

	urls := []string{
		srv.URL + "/avhrr_19900101_v5.nc",
		srv.URL + "/broken_19900201_v5.nc",
		srv.URL + "/avhrr_19900302_v5.nc",
	}
	res, err := c.Download(context.Background(), urls, "/downloads")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if res.Downloaded != 2 || res.Failed != 1 {
		t.Errorf("result = %+v, want 2 downloaded / 1 failed", res)
	}
}
