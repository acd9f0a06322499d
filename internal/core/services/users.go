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

// This file defines the UserService: signup, login and profile management.
// Passwords are stored as bcrypt hashes only.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/model"
	"github.com/jaycherian/gcp-go-video-summary/internal/core/store"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = store.ErrUserExists
	ErrUserNotFound       = store.ErrUserNotFound
	ErrMissingFields      = errors.New("missing required fields")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoFieldsToUpdate   = errors.New("no fields to update")
	ErrInvalidProfile     = errors.New("invalid profile update")
)

const summaryPreferencesSchema = `{
  "type": "object",
  "properties": {
    "length": {"type": "string"},
    "focus": {"type": "array", "items": {"type": "string"}},
    "tone": {"type": "string"}
  }
}`

var preferencesSchema = jsonschema.MustCompileString("summary_preferences.json", summaryPreferencesSchema)

// SignupRequest carries the fields accepted at signup. Role and Expertise
// are optional.
type SignupRequest struct {
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Password  string   `json:"password"`
	Role      string   `json:"role"`
	Expertise []string `json:"expertise"`
}

type UserService struct {
	Store    *store.SQLStore
	Tokens   *TokenIssuer
	HashCost int
}

func NewUserService(userStore *store.SQLStore, tokens *TokenIssuer, hashCost int) *UserService {
	if hashCost < bcrypt.MinCost || hashCost > bcrypt.MaxCost {
		hashCost = bcrypt.DefaultCost
	}
	return &UserService{Store: userStore, Tokens: tokens, HashCost: hashCost}
}

// Signup creates the account and returns it with a fresh token.
func (s *UserService) Signup(ctx context.Context, req SignupRequest) (*model.User, string, error) {
	email := strings.TrimSpace(req.Email)
	if strings.TrimSpace(req.Name) == "" || email == "" || req.Password == "" {
		return nil, "", ErrMissingFields
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.HashCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}
	role := req.Role
	if role == "" {
		role = model.DefaultRole
	}
	expertise := req.Expertise
	if expertise == nil {
		expertise = []string{}
	}
	user := &model.User{
		ID:                 uuid.NewString(),
		Name:               strings.TrimSpace(req.Name),
		Email:              email,
		PasswordHash:       string(hash),
		Role:               role,
		Expertise:          expertise,
		SummaryPreferences: model.DefaultSummaryPreferences(),
		Language:           model.DefaultLanguage,
		CreatedAt:          time.Now().UTC(),
	}
	if err := s.Store.CreateUser(ctx, user); err != nil {
		return nil, "", err
	}
	token, err := s.Tokens.Issue(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login checks the password and returns the user with a fresh token. An
// unknown email and a wrong password are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email string, password string) (*model.User, string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, "", ErrMissingFields
	}
	user, err := s.Store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrUserNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}
	token, err := s.Tokens.Issue(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *UserService) Profile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.Store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Language == "" {
		user.Language = model.DefaultLanguage
	}
	return user, nil
}

// ProfileSnapshot is the profile attached to a job at submission.
func (s *UserService) ProfileSnapshot(ctx context.Context, userID string) (*model.UserProfile, error) {
	user, err := s.Store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Profile(), nil
}

// UpdateProfile applies a partial update given as a JSON object.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, body []byte) error {
	update, err := ParseProfileUpdate(body)
	if err != nil {
		return err
	}
	return s.Store.UpdateUser(ctx, userID, update)
}

// ParseProfileUpdate reads the recognised keys of a profile update. Unknown
// keys are ignored; an update with no recognised key is ErrNoFieldsToUpdate.
func ParseProfileUpdate(body []byte) (model.UserUpdate, error) {
	var update model.UserUpdate
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return update, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}

	for key, target := range map[string]**string{
		"name":     &update.Name,
		"bio":      &update.Bio,
		"role":     &update.Role,
		"language": &update.Language,
	} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return update, fmt.Errorf("%w: %s must be a string", ErrInvalidProfile, key)
		}
	}

	if raw, ok := fields["expertise"]; ok {
		var expertise []string
		if err := json.Unmarshal(raw, &expertise); err != nil {
			return update, fmt.Errorf("%w: expertise must be a list of strings", ErrInvalidProfile)
		}
		if expertise == nil {
			expertise = []string{}
		}
		update.Expertise = expertise
		update.SetExpertise = true
	}

	if raw, ok := fields["summaryPreferences"]; ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return update, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
		}
		if err := preferencesSchema.Validate(doc); err != nil {
			return update, fmt.Errorf("%w: summaryPreferences: %v", ErrInvalidProfile, err)
		}
		prefs := &model.SummaryPreferences{}
		if err := json.Unmarshal(raw, prefs); err != nil {
			return update, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
		}
		update.SummaryPreferences = prefs
	}

	if update.IsEmpty() {
		return update, ErrNoFieldsToUpdate
	}
	return update, nil
}
