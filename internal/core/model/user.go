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

package model

import "time"

const (
	DefaultRole     = "user"
	DefaultLanguage = "en"
	DefaultLength   = "medium"
)

// SummaryPreferences are the stored defaults a user wants applied to every
// summary. They are injected into the prompt, never interpreted by the
// pipeline itself.
type SummaryPreferences struct {
	Length string   `json:"length,omitempty"`
	Focus  []string `json:"focus,omitempty"`
	Tone   string   `json:"tone,omitempty"`
}

// IsEmpty reports whether no preference is set.
func (p *SummaryPreferences) IsEmpty() bool {
	return p == nil || (p.Length == "" && len(p.Focus) == 0 && p.Tone == "")
}

// DefaultSummaryPreferences are assigned at signup.
func DefaultSummaryPreferences() *SummaryPreferences {
	return &SummaryPreferences{
		Length: DefaultLength,
		Focus:  []string{"technical", "highlevel"},
		Tone:   "professional",
	}
}

// User is an account holder.
type User struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name"`
	Email              string              `json:"email"`
	PasswordHash       string              `json:"-"`
	Bio                string              `json:"bio"`
	Role               string              `json:"role"`
	Expertise          []string            `json:"expertise"`
	SummaryPreferences *SummaryPreferences `json:"summaryPreferences"`
	Language           string              `json:"language"`
	CreatedAt          time.Time           `json:"-"`
}

// Profile is the snapshot taken when a job is submitted. Later profile edits
// do not affect jobs already in flight.
func (u *User) Profile() *UserProfile {
	out := &UserProfile{ID: u.ID, Expertise: append([]string(nil), u.Expertise...)}
	if u.SummaryPreferences != nil {
		prefs := *u.SummaryPreferences
		prefs.Focus = append([]string(nil), u.SummaryPreferences.Focus...)
		out.SummaryPreferences = &prefs
	}
	return out
}

// UserProfile is the user input to prompt building.
type UserProfile struct {
	ID                 string              `json:"id"`
	Expertise          []string            `json:"expertise"`
	SummaryPreferences *SummaryPreferences `json:"summaryPreferences,omitempty"`
}

// UserUpdate carries the recognised fields of a partial profile update. A nil
// field is left unchanged.
type UserUpdate struct {
	Name               *string
	Bio                *string
	Role               *string
	Expertise          []string
	SetExpertise       bool
	SummaryPreferences *SummaryPreferences
	Language           *string
}

// IsEmpty reports whether the update touches no fields.
func (u *UserUpdate) IsEmpty() bool {
	return u.Name == nil && u.Bio == nil && u.Role == nil && !u.SetExpertise &&
		u.SummaryPreferences == nil && u.Language == nil
}
