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

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jaycherian/gcp-go-video-summary/internal/core/model"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/services"
	"github.com/jaycherian/gcp-go-video-summary/internal/media"
)

const (
	DefaultNumFrames = 10
	MaxNumFrames     = 100
	DefaultStyle     = "default"
	DefaultFormat    = "paragraph"
	DefaultListLimit = 20
)

// ClampNumFrames maps missing or non-positive counts to the default and caps
// the rest at MaxNumFrames.
func ClampNumFrames(n int) int {
	switch {
	case n <= 0:
		return DefaultNumFrames
	case n > MaxNumFrames:
		return MaxNumFrames
	}
	return n
}

// ParseMetadata accepts a JSON object. Anything else yields an empty map.
func ParseMetadata(raw []byte) map[string]any {
	out := map[string]any{}
	if len(raw) == 0 {
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func orDefault(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

type fromURLRequest struct {
	URL                string          `json:"url"`
	NumFrames          int             `json:"num_frames"`
	SummaryStyle       string          `json:"summary_style"`
	SummaryFormat      string          `json:"summary_format"`
	SummaryLengthWords int             `json:"summary_length_words"`
	Metadata           json.RawMessage `json:"metadata"`
}

type visualCaption struct {
	Frame   int    `json:"frame"`
	Caption string `json:"caption"`
}

type resultResponse struct {
	JobID              string          `json:"jobId"`
	Summary            string          `json:"summary"`
	AudioTranscription string          `json:"audio_transcription"`
	VisualCaptions     []visualCaption `json:"visualCaptions"`
	Transcript         string          `json:"transcript"`
	Highlights         []string        `json:"highlights"`
	VideoURL           *string         `json:"videoUrl"`
	SummaryFormat      string          `json:"summaryFormat"`
}

func newResultResponse(job *model.Job) resultResponse {
	res := job.Result
	out := resultResponse{
		JobID:              job.ID,
		Summary:            res.FinalSummary,
		AudioTranscription: res.AudioTranscription,
		VisualCaptions:     make([]visualCaption, 0, len(res.VisualAnalysis.FrameCaptions)),
		Transcript:         res.AudioTranscription,
		Highlights:         []string{},
		SummaryFormat:      orDefault(res.SummaryFormat, DefaultFormat),
	}
	for i, caption := range res.VisualAnalysis.FrameCaptions {
		out.VisualCaptions = append(out.VisualCaptions, visualCaption{Frame: i + 1, Caption: model.StripFrameLabel(caption)})
	}
	if res.VideoURL != "" {
		out.VideoURL = &res.VideoURL
	}
	return out
}

// VideoRouter sets up job submission and the per-job queries. All routes
// require a bearer token.
func (s *Server) VideoRouter(r *gin.RouterGroup) {
	videos := r.Group("/videos", RequireAuth(s.Tokens))
	{
		videos.POST("/upload", s.uploadVideo)
		videos.POST("/from-url", s.videoFromURL)

		videos.GET("/status/:jobId", func(c *gin.Context) {
			status, err := s.Jobs.Status(c.Request.Context(), c.Param("jobId"), currentUser(c))
			if errors.Is(err, services.ErrJobNotFound) {
				abortWithError(c, http.StatusNotFound, "Job not found")
				return
			}
			if err != nil {
				internalError(c, err)
				return
			}
			c.JSON(http.StatusOK, status)
		})

		videos.GET("/result/:jobId", func(c *gin.Context) {
			job, err := s.Jobs.Result(c.Request.Context(), c.Param("jobId"), currentUser(c))
			switch {
			case errors.Is(err, services.ErrJobNotFound):
				abortWithError(c, http.StatusNotFound, "Job not found")
			case errors.Is(err, services.ErrJobNotCompleted):
				abortWithError(c, http.StatusBadRequest, "Job not completed yet")
			case err != nil:
				internalError(c, err)
			default:
				c.JSON(http.StatusOK, newResultResponse(job))
			}
		})

		videos.GET("/list", func(c *gin.Context) {
			limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultListLimit)))
			if err != nil || limit <= 0 {
				limit = DefaultListLimit
			}
			jobs, err := s.Jobs.List(c.Request.Context(), currentUser(c), limit)
			if err != nil {
				internalError(c, err)
				return
			}
			if jobs == nil {
				jobs = []model.JobSummary{}
			}
			c.JSON(http.StatusOK, gin.H{"jobs": jobs})
		})
	}
}

func (s *Server) uploadVideo(c *gin.Context) {
	if s.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.MaxUploadBytes)
	}
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			abortWithError(c, http.StatusRequestEntityTooLarge, "File too large")
		case errors.Is(err, http.ErrMissingFile):
			abortWithError(c, http.StatusBadRequest, "No file provided")
		default:
			abortWithError(c, http.StatusBadRequest, err.Error())
		}
		return
	}
	if header.Filename == "" {
		abortWithError(c, http.StatusBadRequest, "No file selected")
		return
	}
	if header.Size == 0 {
		abortWithError(c, http.StatusBadRequest, "Empty file")
		return
	}

	if err := os.MkdirAll(s.UploadDir, 0o755); err != nil {
		internalError(c, err)
		return
	}
	local := filepath.Join(s.UploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(header.Filename)))
	if err := c.SaveUploadedFile(header, local); err != nil {
		internalError(c, err)
		return
	}
	head, err := media.ReadHead(local)
	if err != nil || !media.IsAcceptableUpload(head) {
		_ = os.Remove(local)
		abortWithError(c, http.StatusBadRequest, "Unsupported file type")
		return
	}

	params := model.JobParams{
		SourcePath:   local,
		NumFrames:    ClampNumFrames(atoiOrZero(c.DefaultPostForm("num_frames", strconv.Itoa(DefaultNumFrames)))),
		Style:        orDefault(c.PostForm("summary_style"), DefaultStyle),
		Format:       orDefault(c.PostForm("summary_format"), DefaultFormat),
		TargetWords:  max(atoiOrZero(c.PostForm("summary_length_words")), 0),
		Metadata:     ParseMetadata([]byte(c.PostForm("metadata"))),
		OriginalName: filepath.Base(header.Filename),
	}
	s.submit(c, params)
}

func (s *Server) videoFromURL(c *gin.Context) {
	var req fromURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		abortWithError(c, http.StatusBadRequest, "URL is required")
		return
	}

	local, err := s.Fetcher.Fetch(c.Request.Context(), req.URL, s.UploadDir)
	if err != nil {
		slog.WarnContext(c.Request.Context(), "video download failed", "url", req.URL, "error", err)
		abortWithError(c, http.StatusBadRequest, "Failed to download video: "+err.Error())
		return
	}

	params := model.JobParams{
		SourcePath:   local,
		SourceURL:    strings.TrimSpace(req.URL),
		NumFrames:    ClampNumFrames(req.NumFrames),
		Style:        orDefault(req.SummaryStyle, DefaultStyle),
		Format:       orDefault(req.SummaryFormat, DefaultFormat),
		TargetWords:  max(req.SummaryLengthWords, 0),
		Metadata:     ParseMetadata(req.Metadata),
		OriginalName: sourceName(req.URL),
	}
	s.submit(c, params)
}

func sourceName(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Path == "" {
		return ""
	}
	return path.Base(u.Path)
}

// submit attaches the caller's profile snapshot and queues the job. The
// local media is removed when no job could be created for it.
func (s *Server) submit(c *gin.Context, params model.JobParams) {
	ctx := c.Request.Context()
	userID := currentUser(c)
	params.Profile = s.profileSnapshot(ctx, userID)

	id, err := s.Jobs.Submit(ctx, userID, params)
	if err != nil {
		_ = os.Remove(params.SourcePath)
		if errors.Is(err, services.ErrShuttingDown) {
			abortWithError(c, http.StatusServiceUnavailable, err.Error())
			return
		}
		internalError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"jobId": id})
}

func (s *Server) profileSnapshot(ctx context.Context, userID string) *model.UserProfile {
	profile, err := s.Users.ProfileSnapshot(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "submitting without a user profile", "user", userID, "error", err)
		return nil
	}
	return profile
}
