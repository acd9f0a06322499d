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

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jaycherian/gcp-go-video-summary/internal/core/model"
)

const userColumns = `id, name, email, password_hash, bio, role, expertise, summary_preferences, language, created_at`

// CreateUser inserts a new account. A taken email yields ErrUserExists.
func (s *SQLStore) CreateUser(ctx context.Context, user *model.User) error {
	expertise, err := json.Marshal(nonNil(user.Expertise))
	if err != nil {
		return err
	}
	var prefs sql.NullString
	if user.SummaryPreferences != nil {
		b, err := json.Marshal(user.SummaryPreferences)
		if err != nil {
			return err
		}
		prefs = sql.NullString{String: string(b), Valid: true}
	}
	_, err = s.exec(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Name, user.Email, user.PasswordHash, user.Bio, user.Role,
		string(expertise), prefs, user.Language, formatTime(user.CreatedAt))
	if s.dialect.isUniqueViolation(err) {
		return ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *SQLStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.getUserBy(ctx, "id", id)
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUserBy(ctx, "email", email)
}

func (s *SQLStore) getUserBy(ctx context.Context, column string, value string) (*model.User, error) {
	row := s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value)
	var (
		user               model.User
		expertise, created string
		prefs              sql.NullString
	)
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Bio, &user.Role,
		&expertise, &prefs, &user.Language, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user: %w", err)
	}
	user.CreatedAt = parseTime(created)
	if err := json.Unmarshal([]byte(expertise), &user.Expertise); err != nil || user.Expertise == nil {
		user.Expertise = []string{}
	}
	if prefs.Valid && prefs.String != "" {
		user.SummaryPreferences = &model.SummaryPreferences{}
		if err := json.Unmarshal([]byte(prefs.String), user.SummaryPreferences); err != nil {
			return nil, fmt.Errorf("corrupt preferences on user %s: %w", user.ID, err)
		}
	}
	if user.Language == "" {
		user.Language = model.DefaultLanguage
	}
	return &user, nil
}

// UpdateUser applies the non-nil fields of update.
func (s *SQLStore) UpdateUser(ctx context.Context, id string, update model.UserUpdate) error {
	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if update.Name != nil {
		set("name", *update.Name)
	}
	if update.Bio != nil {
		set("bio", *update.Bio)
	}
	if update.Role != nil {
		set("role", *update.Role)
	}
	if update.SetExpertise {
		b, err := json.Marshal(nonNil(update.Expertise))
		if err != nil {
			return err
		}
		set("expertise", string(b))
	}
	if update.SummaryPreferences != nil {
		b, err := json.Marshal(update.SummaryPreferences)
		if err != nil {
			return err
		}
		set("summary_preferences", string(b))
	}
	if update.Language != nil {
		set("language", *update.Language)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := s.exec(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
