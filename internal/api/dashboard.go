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
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Dashboard sets up the unauthenticated service endpoints.
func (s *Server) Dashboard(r *gin.RouterGroup) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "VideoWise Backend API",
			"service": s.Name,
			"status":  "running",
			"version": s.Version,
			"endpoints": gin.H{
				"health": "/health",
				"auth": gin.H{
					"signup": "/auth/signup",
					"login":  "/auth/login",
					"me":     "/auth/me",
				},
				"user": gin.H{
					"profile": "/user/profile",
				},
				"videos": gin.H{
					"upload":   "/videos/upload",
					"from-url": "/videos/from-url",
					"status":   "/videos/status/<job_id>",
					"result":   "/videos/result/<job_id>",
					"list":     "/videos/list",
				},
			},
			"models_loaded": s.ModelsLoaded,
			"timestamp":     time.Now().Format(time.RFC3339),
		})
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":        "healthy",
			"models_loaded": s.ModelsLoaded,
			"timestamp":     time.Now().Format(time.RFC3339),
		})
	})
}
