// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-video-summary/internal/cloud"
)

// DownloadError reports a source that could not be fetched. No job is
// created for it.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return e.Err.Error()
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

var (
	ErrTooLarge   = errors.New("media exceeds the maximum allowed size")
	ErrEmptyMedia = errors.New("downloaded media is empty")
)

// Fetcher downloads remote media into a local directory.
type Fetcher struct {
	storage  *storage.Client
	runner   CommandRunner
	ytDlp    string
	client   *http.Client
	maxBytes int64
}

// NewFetcher builds a fetcher. storageClient may be nil, in which case gs://
// sources are refused. An empty ytDlp disables yt-dlp and http(s) sources are
// fetched with a plain GET.
func NewFetcher(storageClient *storage.Client, runner CommandRunner, ytDlp string, client *http.Client, maxBytes int64) *Fetcher {
	if runner == nil {
		runner = ExecRunner{}
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{storage: storageClient, runner: runner, ytDlp: ytDlp, client: client, maxBytes: maxBytes}
}

// Fetch downloads rawURL into dir and returns the local path.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, dir string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", &DownloadError{URL: rawURL, Err: err}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &DownloadError{URL: rawURL, Err: err}
	}

	var local string
	switch u.Scheme {
	case "gs":
		local, err = f.fetchObject(ctx, rawURL, dir)
	case "http", "https":
		if f.ytDlp != "" {
			local, err = f.fetchWithYtDlp(ctx, u.String(), dir)
		} else {
			local, err = f.fetchHTTP(ctx, u, dir)
		}
	default:
		err = fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	if err != nil {
		return "", &DownloadError{URL: rawURL, Err: err}
	}
	return local, nil
}

func (f *Fetcher) fetchObject(ctx context.Context, rawURL string, dir string) (string, error) {
	if f.storage == nil {
		return "", errors.New("cloud storage is not configured")
	}
	bucket, object, err := cloud.ParseGCSURI(rawURL)
	if err != nil {
		return "", err
	}
	reader, err := f.storage.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return "", err
	}
	defer reader.Close()
	if f.maxBytes > 0 && reader.Attrs.Size > f.maxBytes {
		return "", ErrTooLarge
	}
	return f.save(reader, dir, path.Ext(object))
}

func (f *Fetcher) fetchHTTP(ctx context.Context, u *url.URL, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected HTTP status %s", resp.Status)
	}
	return f.save(resp.Body, dir, path.Ext(u.Path))
}

func (f *Fetcher) fetchWithYtDlp(ctx context.Context, rawURL string, dir string) (string, error) {
	args := []string{
		"-f", "best[ext=mp4]/best",
		"--no-playlist",
		"--no-simulate",
		"--print", "after_move:filepath",
	}
	if f.maxBytes > 0 {
		args = append(args, "--max-filesize", strconv.FormatInt(f.maxBytes, 10))
	}
	args = append(args, "-o", filepath.Join(dir, "%(id)s.%(ext)s"), rawURL)

	stdout, _, err := f.runner.Run(ctx, f.ytDlp, args...)
	if err != nil {
		return "", err
	}
	lines := strings.Split(strings.TrimSpace(string(stdout)), "\n")
	local := strings.TrimSpace(lines[len(lines)-1])
	if local == "" {
		// yt-dlp skips downloads over --max-filesize without failing.
		return "", errors.New("yt-dlp did not report a downloaded file")
	}
	info, err := os.Stat(local)
	if err != nil {
		return "", err
	}
	// --max-filesize cannot stop a download whose size is unknown up front.
	switch {
	case f.maxBytes > 0 && info.Size() > f.maxBytes:
		err = ErrTooLarge
	case info.Size() == 0:
		err = ErrEmptyMedia
	}
	if err != nil {
		_ = os.Remove(local)
		return "", err
	}
	return local, nil
}

// save copies r into a new uniquely named file, enforcing the size limit.
func (f *Fetcher) save(r io.Reader, dir string, ext string) (string, error) {
	if ext == "" || len(ext) > 6 {
		ext = ".mp4"
	}
	local := filepath.Join(dir, uuid.NewString()+ext)
	out, err := os.Create(local)
	if err != nil {
		return "", err
	}
	src := r
	if f.maxBytes > 0 {
		src = io.LimitReader(r, f.maxBytes+1)
	}
	n, err := io.Copy(out, src)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && f.maxBytes > 0 && n > f.maxBytes {
		err = ErrTooLarge
	}
	if err == nil && n == 0 {
		err = ErrEmptyMedia
	}
	if err != nil {
		_ = os.Remove(local)
		return "", err
	}
	return local, nil
}
