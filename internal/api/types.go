// Package api provides a client for the CodebaseQA backend REST and SSE API.
package api

import (
	"net/url"
	"strconv"
)

// Repository indexing states.
const (
	StatusPending   = "pending"
	StatusCloning   = "cloning"
	StatusParsing   = "parsing"
	StatusEmbedding = "embedding"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Repo is an indexed GitHub repository. Timestamps are kept as the server's
// strings since they are only displayed.
type Repo struct {
	ID              string   `json:"id"`
	GitHubURL       string   `json:"github_url"`
	GitHubOwner     string   `json:"github_owner"`
	GitHubName      string   `json:"github_name"`
	Status          string   `json:"status"`
	Description     string   `json:"description,omitempty"`
	PrimaryLanguage string   `json:"primary_language,omitempty"`
	Languages       []string `json:"languages,omitempty"`
	TotalFiles      int      `json:"total_files"`
	TotalChunks     int      `json:"total_chunks"`
	IndexingError   string   `json:"indexing_error,omitempty"`
	LastIndexedAt   string   `json:"last_indexed_at,omitempty"`
	CreatedAt       string   `json:"created_at,omitempty"`
}

// Indexed reports whether indexing has finished, successfully or not.
func (r Repo) Indexed() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// FullName returns owner/name.
func (r Repo) FullName() string {
	return r.GitHubOwner + "/" + r.GitHubName
}

// RepoList is the response of ListRepos.
type RepoList struct {
	Repositories []Repo `json:"repositories"`
	Total        int    `json:"total"`
}

// CreateRepoRequest asks the backend to index a repository.
type CreateRepoRequest struct {
	GitHubURL string `json:"github_url"`
	Branch    string `json:"branch,omitempty"`
}

// GraphQuery selects which graph the backend generates. Zero values are omitted.
type GraphQuery struct {
	Granularity string // "file", "module" or "auto"
	Scope       string
	FocusNode   string
	Hops        int
}

// Values encodes q as query parameters.
func (q GraphQuery) Values() url.Values {
	v := url.Values{}
	if q.Granularity != "" {
		v.Set("granularity", q.Granularity)
	}
	if q.Scope != "" {
		v.Set("scope", q.Scope)
	}
	if q.FocusNode != "" {
		v.Set("focus_node", q.FocusNode)
	}
	if q.Hops > 0 {
		v.Set("hops", strconv.Itoa(q.Hops))
	}
	return v
}

// QueryKey is a canonical string for q, used to key snapshots.
func QueryKey(q GraphQuery) string {
	return q.Values().Encode()
}

// GraphViewResult is returned when a graph view is recorded.
type GraphViewResult struct {
	AchievementUnlocked map[string]any `json:"achievement_unlocked,omitempty"`
	XPAwarded           int            `json:"xp_awarded,omitempty"`
	AlreadyViewed       bool           `json:"already_viewed,omitempty"`
}

// ChatSession is a conversation about one repository.
type ChatSession struct {
	ID        string        `json:"id"`
	RepoID    string        `json:"repo_id"`
	Title     string        `json:"title,omitempty"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt string        `json:"created_at,omitempty"`
	UpdatedAt string        `json:"updated_at,omitempty"`
}

// ChatMessage is one stored message of a session.
type ChatMessage struct {
	ID              string           `json:"id"`
	Role            string           `json:"role"`
	Content         string           `json:"content"`
	RetrievedChunks []map[string]any `json:"retrieved_chunks,omitempty"`
	CreatedAt       string           `json:"created_at,omitempty"`
}

// MessageRequest is a user question.
type MessageRequest struct {
	Content      string   `json:"content"`
	ContextFiles []string `json:"context_files,omitempty"`
	Mode         string   `json:"mode,omitempty"`
}

// Source is a retrieved code chunk cited by an answer.
type Source struct {
	File      string  `json:"file"`
	Content   string  `json:"content,omitempty"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Score     float64 `json:"score,omitempty"`
}

// Chunk types of a chat stream.
const (
	ChunkContent = "content"
	ChunkSources = "sources"
	ChunkMeta    = "meta"
	ChunkDone    = "done"
	ChunkError   = "error"
)

// StreamChunk is one decoded `data:` line of a chat stream.
type StreamChunk struct {
	Type    string         `json:"type"`
	Content string         `json:"content,omitempty"`
	Sources []Source       `json:"sources,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
	Error   string         `json:"error,omitempty"`
	Code    string         `json:"code,omitempty"`
}

// Answer is a fully collected chat response.
type Answer struct {
	SessionID string         `json:"session_id"`
	Content   string         `json:"content"`
	Sources   []Source       `json:"sources,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// SearchRequest is a semantic code search.
type SearchRequest struct {
	Query          string   `json:"query"`
	RepoID         string   `json:"repo_id"`
	Limit          int      `json:"limit,omitempty"`
	FileFilter     []string `json:"file_filter,omitempty"`
	LanguageFilter []string `json:"language_filter,omitempty"`
}

// SearchResult is one matching chunk.
type SearchResult struct {
	ChunkID    string   `json:"chunk_id"`
	FilePath   string   `json:"file_path"`
	Content    string   `json:"content"`
	ChunkType  string   `json:"chunk_type"`
	Score      float64  `json:"score"`
	StartLine  int      `json:"start_line"`
	EndLine    int      `json:"end_line"`
	Highlights []string `json:"highlights,omitempty"`
}

// SearchResponse is the response of Search.
type SearchResponse struct {
	Results     []SearchResult `json:"results"`
	Total       int            `json:"total"`
	QueryTimeMS float64        `json:"query_time_ms"`
}

// PlatformConfig exposes backend runtime flags.
type PlatformConfig struct {
	DemoMode           bool   `json:"demo_mode"`
	DemoRepoID         string `json:"demo_repo_id,omitempty"`
	DemoRepoFullName   string `json:"demo_repo_full_name,omitempty"`
	DemoRepoURL        string `json:"demo_repo_url,omitempty"`
	DemoBannerText     string `json:"demo_banner_text,omitempty"`
	AllowPublicImports bool   `json:"allow_public_imports"`
	BusyMode           bool   `json:"busy_mode"`
}

// Health is the backend health report.
type Health struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}
