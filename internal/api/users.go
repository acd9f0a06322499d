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
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jaycherian/gcp-go-video-summary/internal/core/model"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/services"
)

type accountView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type authResponse struct {
	User  accountView `json:"user"`
	Token string      `json:"token"`
}

func newAuthResponse(user *model.User, token string) authResponse {
	return authResponse{
		User:  accountView{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role},
		Token: token,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthRouter sets up account creation, login and the current user lookup.
func (s *Server) AuthRouter(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/signup", func(c *gin.Context) {
			var req services.SignupRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				abortWithError(c, http.StatusBadRequest, "Missing required fields")
				return
			}
			user, token, err := s.Users.Signup(c.Request.Context(), req)
			switch {
			case errors.Is(err, services.ErrMissingFields):
				abortWithError(c, http.StatusBadRequest, "Missing required fields")
			case errors.Is(err, services.ErrUserExists):
				abortWithError(c, http.StatusBadRequest, "User already exists")
			case err != nil:
				internalError(c, err)
			default:
				slog.InfoContext(c.Request.Context(), "user signed up", "user", user.ID)
				c.JSON(http.StatusCreated, newAuthResponse(user, token))
			}
		})

		auth.POST("/login", func(c *gin.Context) {
			var req loginRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				abortWithError(c, http.StatusBadRequest, "Missing email or password")
				return
			}
			user, token, err := s.Users.Login(c.Request.Context(), req.Email, req.Password)
			switch {
			case errors.Is(err, services.ErrMissingFields):
				abortWithError(c, http.StatusBadRequest, "Missing email or password")
			case errors.Is(err, services.ErrInvalidCredentials):
				abortWithError(c, http.StatusUnauthorized, "Invalid credentials")
			case err != nil:
				internalError(c, err)
			default:
				c.JSON(http.StatusOK, newAuthResponse(user, token))
			}
		})

		auth.GET("/me", RequireAuth(s.Tokens), s.getProfile)
	}
}

// UserRouter sets up the profile endpoints.
func (s *Server) UserRouter(r *gin.RouterGroup) {
	user := r.Group("/user", RequireAuth(s.Tokens))
	{
		user.GET("/profile", s.getProfile)
		user.PUT("/profile", s.updateProfile)
	}
}

func (s *Server) getProfile(c *gin.Context) {
	user, err := s.Users.Profile(c.Request.Context(), currentUser(c))
	if errors.Is(err, services.ErrUserNotFound) {
		abortWithError(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) updateProfile(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	err = s.Users.UpdateProfile(c.Request.Context(), currentUser(c), body)
	switch {
	case errors.Is(err, services.ErrNoFieldsToUpdate):
		abortWithError(c, http.StatusBadRequest, "No fields to update")
	case errors.Is(err, services.ErrInvalidProfile):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrUserNotFound):
		abortWithError(c, http.StatusNotFound, "User not found")
	case err != nil:
		internalError(c, err)
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully"})
	}
}
