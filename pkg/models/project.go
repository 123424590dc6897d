// Package models contains shared data models used across the engine codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Project status values. A project is terminal once it reaches done, failed
// or canceled and never transitions out of a terminal status.
const (
	StatusPending  = "pending"
	StatusRunning  = "running"
	StatusDone     = "done"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
)

// Story length codes and their order of magnitude.
const (
	LengthShort  = "short"
	LengthMedium = "medium"
	LengthLong   = "long"
)

// Project is the unit of work: one user-submitted story request and its
// lifecycle record. A project with a non-nil ParentID is a variant spawned
// from its parent's narrative branches; variants never spawn further
// variants.
type Project struct {
	ID       uuid.UUID  `db:"id"         json:"id"`
	UserID   uuid.UUID  `db:"user_id"    json:"user_id"`
	ParentID *uuid.UUID `db:"parent_id"  json:"parent_id,omitempty"`

	// Generation inputs.
	HeroName     string `db:"hero_name"     json:"hero_name"`
	HeroAge      int    `db:"hero_age"      json:"hero_age"`
	HeroPronouns string `db:"hero_pronouns" json:"hero_pronouns"`
	HeroAnimal   string `db:"hero_animal"   json:"hero_animal"`
	HeroColor    string `db:"hero_color"    json:"hero_color"`
	Theme        string `db:"theme"         json:"theme"`
	ArtStyle     string `db:"art_style"     json:"art_style"`
	Language     string `db:"language"      json:"language"`
	VoiceID      string `db:"voice_id"      json:"voice_id"`
	Length       string `db:"length"        json:"length"`
	Difficulty   int    `db:"difficulty"    json:"difficulty"`
	CustomPrompt string `db:"custom_prompt" json:"custom_prompt,omitempty"`
	ModelID      string `db:"model_id"      json:"model_id,omitempty"`
	ChoiceID     string `db:"choice_id"     json:"choice_id,omitempty"`

	// Pipeline progress.
	Status       string `db:"status"        json:"status"`
	Progress     int    `db:"progress"      json:"progress"`
	ErrorMessage string `db:"error_message" json:"error_message,omitempty"`

	// Derived artifacts.
	FullText      string `db:"full_text"      json:"full_text,omitempty"`
	Title         string `db:"title"          json:"title,omitempty"`
	Synopsis      string `db:"synopsis"       json:"synopsis,omitempty"`
	Tags          string `db:"tags"           json:"tags,omitempty"`
	CoverURL      string `db:"cover_url"      json:"cover_url,omitempty"`
	AudioURL      string `db:"audio_url"      json:"audio_url,omitempty"`
	AudioDuration int    `db:"audio_duration" json:"audio_duration,omitempty"`

	Pages []Page `db:"-" json:"pages,omitempty"`

	CreatedAt  time.Time  `db:"created_at"  json:"created_at"`
	StartedAt  *time.Time `db:"started_at"  json:"started_at,omitempty"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// Terminal reports whether the project reached a final status.
func (p *Project) Terminal() bool {
	return p.Status == StatusDone || p.Status == StatusFailed || p.Status == StatusCanceled
}

// IsVariant reports whether the project was spawned from a parent project.
func (p *Project) IsVariant() bool {
	return p.ParentID != nil
}
