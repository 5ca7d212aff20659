// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Project groups the articles saved for one keyword search.
type Project struct {
	ID          string    `json:"project_id" yaml:"project_id"`
	Name        string    `json:"name" yaml:"name"`
	Keyword     string    `json:"keyword" yaml:"keyword"`
	Years       int       `json:"years" yaml:"years"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`

	// SearchMethod names the backend that produced the saved articles.
	SearchMethod string `json:"search_method,omitempty" yaml:"search_method,omitempty"`

	TotalArticles     int `json:"total_articles" yaml:"total_articles"`
	ProcessedArticles int `json:"processed_articles" yaml:"processed_articles"`
	FulltextArticles  int `json:"fulltext_articles" yaml:"fulltext_articles"`
}

// NewProject holds the caller-supplied fields for creating a project.
type NewProject struct {
	Name         string `json:"name" yaml:"name" validate:"required,max=200"`
	Keyword      string `json:"keyword" yaml:"keyword" validate:"required,max=200"`
	Years        int    `json:"years" yaml:"years" validate:"gte=0,lte=50"`
	Description  string `json:"description" yaml:"description" validate:"max=2000"`
	SearchMethod string `json:"search_method" yaml:"search_method"`
}

// ProjectSnapshot is a project with all of its saved articles.
type ProjectSnapshot struct {
	Project  Project   `json:"project" yaml:"project"`
	Articles []Article `json:"articles" yaml:"articles"`
}

// ProjectStats summarises a project's enrichment progress.
type ProjectStats struct {
	TotalArticles     int             `json:"total_articles"`
	ProcessedArticles int             `json:"processed_articles"`
	FulltextArticles  int             `json:"fulltext_articles"`
	Outcomes          map[Outcome]int `json:"outcomes"`
	TotalFigures      int             `json:"total_figures"`
	KeywordFigures    int             `json:"keyword_figures"`
	TotalMentions     int             `json:"total_mentions"`
}
