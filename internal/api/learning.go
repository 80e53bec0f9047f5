package api

import (
	"context"
	"net/http"
	"net/url"
)

// DefaultPersona is the curriculum track used when none is given.
const DefaultPersona = "new_hire"

// Lesson is one entry of a curriculum module.
type Lesson struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	Type             string `json:"type"`
	EstimatedMinutes int    `json:"estimated_minutes"`
}

// LessonModule groups lessons in a curriculum.
type LessonModule struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Lessons     []Lesson `json:"lessons"`
}

// Syllabus is a repository curriculum for one persona.
type Syllabus struct {
	RepoID      string         `json:"repo_id"`
	Persona     string         `json:"persona"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Modules     []LessonModule `json:"modules"`
}

// LessonCount returns the number of lessons across all modules.
func (s *Syllabus) LessonCount() int {
	n := 0
	for _, m := range s.Modules {
		n += len(m.Lessons)
	}
	return n
}

// CodeTourStep is one stop of a VS Code CodeTour.
type CodeTourStep struct {
	File        string `json:"file"`
	Line        int    `json:"line"`
	Description string `json:"description"`
	Title       string `json:"title,omitempty"`
}

// CodeTour is the content of a .tour file.
type CodeTour struct {
	Title string         `json:"title"`
	Steps []CodeTourStep `json:"steps"`
	Ref   string         `json:"ref,omitempty"`
}

type curriculumRequest struct {
	Persona string `json:"persona"`
}

// Curriculum fetches the curriculum for a persona. The backend generates it on
// first request, which can take a while.
func (c *Client) Curriculum(ctx context.Context, repoID, persona string) (*Syllabus, error) {
	if persona == "" {
		persona = DefaultPersona
	}
	var out Syllabus
	path := "/api/learning/" + url.PathEscape(repoID) + "/curriculum"
	if err := c.do(ctx, http.MethodPost, path, nil, curriculumRequest{Persona: persona}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExportCodeTour fetches a lesson as a CodeTour.
func (c *Client) ExportCodeTour(ctx context.Context, repoID, lessonID string) (*CodeTour, error) {
	var out CodeTour
	path := "/api/learning/" + url.PathEscape(repoID) + "/lessons/" + url.PathEscape(lessonID) + "/export/codetour"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
