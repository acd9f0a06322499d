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

// Package api is the REST surface of the service. Every route answers JSON
// and every error body is {"error": "..."}.
//
// Route groups:
//   - Dashboard: "/" and "/health", no auth.
//   - AuthRouter: "/auth" signup, login and the current user.
//   - UserRouter: "/user/profile" read and partial update.
//   - VideoRouter: "/videos" submission, polling, results and listing.
package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/jaycherian/gcp-go-video-summary/internal/core/services"
	"github.com/jaycherian/gcp-go-video-summary/internal/media"
)

// Server holds the dependencies shared by the route handlers.
type Server struct {
	Jobs           *services.JobService
	Users          *services.UserService
	Tokens         *services.TokenIssuer
	Fetcher        *media.Fetcher
	UploadDir      string
	MaxUploadBytes int64 // 0 disables the limit.
	Name           string
	Version        string
	ModelsLoaded   map[string]bool
}

// NewRouter builds the gin engine with tracing and the default CORS policy.
func NewRouter(s *Server, serviceName string) *gin.Engine {
	r := gin.Default()
	r.Use(otelgin.Middleware(serviceName))
	r.Use(cors.Default())

	root := r.Group("")
	{
		s.Dashboard(root)
		s.AuthRouter(root)
		s.UserRouter(root)
		s.VideoRouter(root)
	}
	return r
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	abortWithError(c, http.StatusInternalServerError, err.Error())
}
