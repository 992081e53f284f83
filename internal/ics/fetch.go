package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "pampatime/internal/log"
)

// Feed is one subscribed iCalendar URL. Name doubles as the import source
// key in the store.
type Feed struct {
	Name string
	URL  string
}

// Payload is the body obtained for a feed.
type Payload struct {
	Feed   Feed
	Body   []byte
	Cached bool
}

type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	SavedAt      time.Time `json:"saved_at"`
}

// DefaultMaxBytes is the body cap used when none is given.
const DefaultMaxBytes int64 = 10 << 20

// ErrBodyTooLarge is returned when a feed body exceeds the fetcher's cap.
var ErrBodyTooLarge = errors.New("feed body exceeds size limit")

// Fetcher downloads feeds with conditional requests and keeps the last good
// body on disk, which is served whenever the network or the server fails.
type Fetcher struct {
	client   *http.Client
	cacheDir string
	maxBytes int64
}

// NewFetcher returns a Fetcher caching under cacheDir and refusing bodies
// over maxBytes. A nil client gets a 15s timeout client; maxBytes <= 0 means
// DefaultMaxBytes.
func NewFetcher(client *http.Client, cacheDir string, maxBytes int64) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "pampatime-ics")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Fetcher{client: client, cacheDir: cacheDir, maxBytes: maxBytes}
}

// Fetch returns the current body of feed.
func (f *Fetcher) Fetch(ctx context.Context, feed Feed) (Payload, error) {
	if feed.URL == "" {
		return Payload{}, errors.New("feed URL is empty")
	}

	dir := f.cacheDirFor(feed.URL)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Payload{}, fmt.Errorf("create cache dir: %w", err)
	}

	meta, _ := readMeta(dir)
	cached, _ := os.ReadFile(filepath.Join(dir, "body.ics"))
	fallback := func(cause error) (Payload, error) {
		if len(cached) == 0 {
			return Payload{}, cause
		}
		appLog.Error("ics fetch failed, using cached body", cause, "feed", feed.Name, "url", redact(feed.URL))
		return Payload{Feed: feed, Body: cached, Cached: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return Payload{}, err
	}
	if meta.URL == feed.URL && len(cached) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fallback(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
		if err != nil {
			return fallback(err)
		}
		if int64(len(body)) > f.maxBytes {
			return fallback(fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, f.maxBytes))
		}
		meta = cacheMeta{
			URL:          feed.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			SavedAt:      time.Now().UTC(),
		}
		if err := writeCache(dir, meta, body); err != nil {
			appLog.Error("ics cache save failed", err, "feed", feed.Name)
		}
		appLog.Info("ics fetched", "feed", feed.Name, "url", redact(feed.URL), "bytes", len(body))
		return Payload{Feed: feed, Body: body}, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return Payload{}, errors.New("304 Not Modified without a cached body")
		}
		appLog.Debug("ics not modified", "feed", feed.Name)
		return Payload{Feed: feed, Body: cached, Cached: true}, nil

	default:
		return fallback(fmt.Errorf("unexpected status %s", resp.Status))
	}
}

func (f *Fetcher) cacheDirFor(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func readMeta(dir string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

// writeCache stores the body before the metadata so the metadata never
// describes a body that is not on disk.
func writeCache(dir string, meta cacheMeta, body []byte) error {
	if err := os.WriteFile(filepath.Join(dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o600)
}

// redact keeps scheme and host only; feed URLs often embed private tokens.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/(redacted)"
}
