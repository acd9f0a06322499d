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

package media_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jaycherian/gcp-go-video-summary/internal/media"
	test "github.com/jaycherian/gcp-go-video-summary/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameIndices(t *testing.T) {
	assert.Equal(t, []int{0, 10, 20, 30, 40, 50, 60, 70, 80, 90}, media.FrameIndices(100, 10))
	assert.Equal(t, []int{0, 1}, media.FrameIndices(2, 10))
	assert.Equal(t, []int{0, 2, 5}, media.FrameIndices(8, 3))
	assert.Empty(t, media.FrameIndices(0, 10))
}

func TestTotalFramesFromDuration(t *testing.T) {
	p, err := media.ParseProbe([]byte(`{"streams":[{"codec_type":"video","avg_frame_rate":"30000/1001","duration":"10.01"}],"format":{"duration":"10.01"}}`))
	require.NoError(t, err)
	assert.Equal(t, 300, p.TotalFrames())
	assert.False(t, p.HasAudio())
}

func TestSampleFramesExactCount(t *testing.T) {
	runner := &test.FakeRunner{Probe: test.ProbeJSON(250, true)}
	ex := media.NewExtractor(runner, "ffmpeg", "ffprobe")

	frames, err := ex.SampleFrames(context.Background(), "in.mp4", t.TempDir(), 10)
	require.NoError(t, err)
	require.Len(t, frames, 10)
	assert.Equal(t, 0, frames[0].Index)
	assert.Equal(t, 25, frames[1].Index)
	assert.FileExists(t, frames[9].Path)

	// One decoder pass for all frames.
	assert.Len(t, runner.CallsTo("ffmpeg"), 1)
}

func TestSampleFramesShortVideo(t *testing.T) {
	runner := &test.FakeRunner{Probe: test.ProbeJSON(2, false)}
	ex := media.NewExtractor(runner, "ffmpeg", "ffprobe")

	frames, err := ex.SampleFrames(context.Background(), "in.mp4", t.TempDir(), 10)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, 0, frames[0].Index)
	assert.Equal(t, 1, frames[1].Index)
}

func TestSampleFramesStreamShorterThanProbe(t *testing.T) {
	runner := &test.FakeRunner{Probe: test.ProbeJSON(250, false), MaxFrames: 4}
	ex := media.NewExtractor(runner, "ffmpeg", "ffprobe")

	frames, err := ex.SampleFrames(context.Background(), "in.mp4", t.TempDir(), 10)
	require.NoError(t, err)
	require.Len(t, frames, 4)
	for i, want := range []int{0, 25, 50, 75} {
		assert.Equal(t, want, frames[i].Index)
		assert.Equal(t, fmt.Sprintf("frame_%04d.jpg", i+1), filepath.Base(frames[i].Path))
	}
}

func TestSampleFramesFailures(t *testing.T) {
	ctx := context.Background()

	noVideo := &test.FakeRunner{Probe: `{"streams":[{"codec_type":"audio"}],"format":{}}`}
	_, err := media.NewExtractor(noVideo, "", "").SampleFrames(ctx, "in.mp4", t.TempDir(), 10)
	var mediaErr *media.MediaError
	require.ErrorAs(t, err, &mediaErr)
	assert.ErrorIs(t, err, media.ErrNoVideoStream)

	corrupt := &test.FakeRunner{ProbeErr: errors.New("invalid data found")}
	_, err = media.NewExtractor(corrupt, "", "").SampleFrames(ctx, "in.mp4", t.TempDir(), 10)
	require.ErrorAs(t, err, &mediaErr)
	assert.Equal(t, "probe", mediaErr.Op)

	empty := &test.FakeRunner{Probe: test.ProbeJSON(0, false)}
	_, err = media.NewExtractor(empty, "", "").SampleFrames(ctx, "in.mp4", t.TempDir(), 10)
	assert.ErrorIs(t, err, media.ErrNoFrames)
}

func TestExtractAudio(t *testing.T) {
	ctx := context.Background()

	runner := &test.FakeRunner{Probe: test.ProbeJSON(10, true), AudioSamples: 16000}
	audio := media.NewExtractor(runner, "", "").ExtractAudio(ctx, "in.mp4", t.TempDir())
	require.NotNil(t, audio)
	assert.EqualValues(t, 16000, audio.Samples)
	assert.Equal(t, media.AudioSampleRate, audio.SampleRate)
	assert.Contains(t, runner.CallsTo("ffmpeg")[0], "-bitexact")

	silent := &test.FakeRunner{Probe: test.ProbeJSON(10, false)}
	assert.Nil(t, media.NewExtractor(silent, "", "").ExtractAudio(ctx, "in.mp4", t.TempDir()))
	assert.Empty(t, silent.CallsTo("ffmpeg"))

	broken := &test.FakeRunner{Probe: test.ProbeJSON(10, true), AudioErr: errors.New("decoder error")}
	assert.Nil(t, media.NewExtractor(broken, "", "").ExtractAudio(ctx, "in.mp4", t.TempDir()))
}

func TestExtractAudioCountsDataChunkOnly(t *testing.T) {
	runner := &test.FakeRunner{Probe: test.ProbeJSON(10, true), AudioSamples: 1600, AudioInfoChunk: true}
	audio := media.NewExtractor(runner, "", "").ExtractAudio(context.Background(), "in.mp4", t.TempDir())
	require.NotNil(t, audio)
	assert.EqualValues(t, 1600, audio.Samples)

	empty := &test.FakeRunner{Probe: test.ProbeJSON(10, true), AudioInfoChunk: true}
	audio = media.NewExtractor(empty, "", "").ExtractAudio(context.Background(), "in.mp4", t.TempDir())
	require.NotNil(t, audio)
	assert.EqualValues(t, 0, audio.Samples)
}

func TestDetectMIME(t *testing.T) {
	dir := t.TempDir()
	frame := filepath.Join(dir, "frame.jpg")
	require.NoError(t, os.WriteFile(frame, test.JPEGBytes, 0o600))
	assert.Equal(t, "image/jpeg", media.FrameMIME(frame))

	assert.False(t, media.IsAcceptableUpload(test.JPEGBytes))
	assert.True(t, media.IsAcceptableUpload([]byte("not a known container")))
	assert.False(t, media.IsAcceptableUpload(nil))
}

func TestFetchHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "missing.mp4") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("video-bytes"))
	}))
	defer srv.Close()

	fetcher := media.NewFetcher(nil, nil, "", srv.Client(), 1024)
	local, err := fetcher.Fetch(context.Background(), srv.URL+"/clip.mp4", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, ".mp4", filepath.Ext(local))
	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(data))

	_, err = fetcher.Fetch(context.Background(), srv.URL+"/missing.mp4", t.TempDir())
	var dlErr *media.DownloadError
	assert.ErrorAs(t, err, &dlErr)

	_, err = fetcher.Fetch(context.Background(), "ftp://example.com/a.mp4", t.TempDir())
	assert.ErrorAs(t, err, &dlErr)

	_, err = fetcher.Fetch(context.Background(), "gs://bucket/a.mp4", t.TempDir())
	assert.ErrorAs(t, err, &dlErr)
}

func TestFetchSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	fetcher := media.NewFetcher(nil, nil, "", srv.Client(), 1024)
	_, err := fetcher.Fetch(context.Background(), srv.URL+"/big.mp4", t.TempDir())
	assert.ErrorIs(t, err, media.ErrTooLarge)
}

func TestFetchEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dir := t.TempDir()
	fetcher := media.NewFetcher(nil, nil, "", srv.Client(), 1024)
	_, err := fetcher.Fetch(context.Background(), srv.URL+"/empty.mp4", dir)
	var dlErr *media.DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.ErrorIs(t, err, media.ErrEmptyMedia)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetchWithYtDlp(t *testing.T) {
	runner := &test.FakeRunner{YtDlpPayload: []byte("downloaded")}
	fetcher := media.NewFetcher(nil, runner, "yt-dlp", nil, 0)

	local, err := fetcher.Fetch(context.Background(), "https://www.youtube.com/watch?v=abc", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "fake-id.mp4", filepath.Base(local))
	calls := runner.CallsTo("yt-dlp")
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], "best[ext=mp4]/best")
}

func TestFetchWithYtDlpSizeLimit(t *testing.T) {
	runner := &test.FakeRunner{YtDlpPayload: make([]byte, 2048)}
	fetcher := media.NewFetcher(nil, runner, "yt-dlp", nil, 1024)

	dir := t.TempDir()
	_, err := fetcher.Fetch(context.Background(), "https://www.youtube.com/watch?v=abc", dir)
	var dlErr *media.DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.ErrorIs(t, err, media.ErrTooLarge)

	calls := runner.CallsTo("yt-dlp")
	require.Len(t, calls, 1)
	assert.Contains(t, strings.Join(calls[0], " "), "--max-filesize 1024")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "oversized downloads are removed")

	empty := &test.FakeRunner{YtDlpPayload: []byte{}}
	_, err = media.NewFetcher(nil, empty, "yt-dlp", nil, 1024).Fetch(context.Background(), "https://www.youtube.com/watch?v=abc", t.TempDir())
	assert.ErrorIs(t, err, media.ErrEmptyMedia)
}
