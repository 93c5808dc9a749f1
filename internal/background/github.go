package background

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tick42/quicksilver/internal/models"
)

// GitHubClient reads public repository stats from the GitHub REST API.
type GitHubClient struct {
	base   string
	client *http.Client
}

func NewGitHubClient(base string) *GitHubClient {
	return &GitHubClient{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

type repoResponse struct {
	OpenIssuesCount int       `json:"open_issues_count"`
	PushedAt        time.Time `json:"pushed_at"`
}

type pullResponse struct {
	Number int `json:"number"`
}

// ParseRepoPath extracts "owner/name" from a github.com link.
func ParseRepoPath(link string) (string, error) {
	parsed, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("invalid repository link: %w", err)
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("repository link %q does not name owner/repo", link)
	}

	return parts[0] + "/" + strings.TrimSuffix(parts[1], ".git"), nil
}

func (c *GitHubClient) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github responded %d for %s", resp.StatusCode, path)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// FetchStats reads the current stats of the repository behind link. The
// returned struct carries only the synced fields; the caller merges them
// with success/failure bookkeeping.
func (c *GitHubClient) FetchStats(ctx context.Context, link string) (*models.GitHubStats, error) {
	repoPath, err := ParseRepoPath(link)
	if err != nil {
		return nil, err
	}

	var repo repoResponse
	if err := c.getJSON(ctx, "/repos/"+repoPath, &repo); err != nil {
		return nil, err
	}

	var pulls []pullResponse
	if err := c.getJSON(ctx, "/repos/"+repoPath+"/pulls?state=open&per_page=100", &pulls); err != nil {
		return nil, err
	}

	stats := &models.GitHubStats{
		Link:         link,
		PullRequests: len(pulls),
		// open_issues_count counts pull requests too
		OpenIssues: repo.OpenIssuesCount - len(pulls),
	}
	if !repo.PushedAt.IsZero() {
		pushedAt := repo.PushedAt
		stats.LastCommit = &pushedAt
	}
	if stats.OpenIssues < 0 {
		stats.OpenIssues = 0
	}

	return stats, nil
}

// SyncRepository is the persistence surface the sync job needs.
type SyncRepository interface {
	ListTracked(ctx context.Context) ([]*models.Extension, error)
	UpdateGitHubStats(ctx context.Context, id int64, stats *models.GitHubStats) error
}

// Syncer periodically refreshes the repository stats of every extension
// that links a GitHub repository. Failures are recorded per extension and
// never stop the sweep.
type Syncer struct {
	repo     SyncRepository
	client   *GitHubClient
	interval time.Duration
	logger   *slog.Logger
	done     chan struct{}
}

func NewSyncer(repo SyncRepository, client *GitHubClient, interval time.Duration, logger *slog.Logger) *Syncer {
	return &Syncer{
		repo:     repo,
		client:   client,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the sync loop. It returns immediately; the loop stops
// when ctx is cancelled or Stop is called.
func (s *Syncer) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.SyncAll(ctx)

		for {
			select {
			case <-ticker.C:
				s.SyncAll(ctx)
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		}
	}()
}

// Stop halts the sync loop. Safe to call once.
func (s *Syncer) Stop() {
	close(s.done)
}

// SyncAll refreshes every tracked extension once.
func (s *Syncer) SyncAll(ctx context.Context) {
	extensions, err := s.repo.ListTracked(ctx)
	if err != nil {
		s.logger.Error("failed to list tracked extensions", slog.Any("error", err))
		return
	}

	for _, ext := range extensions {
		if err := s.syncOne(ctx, ext); err != nil {
			s.logger.Warn("repository sync failed",
				slog.Int64("extension_id", ext.ID),
				slog.Any("error", err))
		}
	}

	s.logger.Info("repository sync sweep finished", slog.Int("count", len(extensions)))
}

func (s *Syncer) syncOne(ctx context.Context, ext *models.Extension) error {
	now := time.Now()

	stats, err := s.client.FetchStats(ctx, ext.GitHub.Link)
	if err != nil {
		// Keep the last known counts, record the failure.
		failed := *ext.GitHub
		failed.LastFail = &now
		message := err.Error()
		failed.FailMessage = &message
		if updateErr := s.repo.UpdateGitHubStats(ctx, ext.ID, &failed); updateErr != nil {
			return updateErr
		}
		return err
	}

	stats.LastSuccess = &now
	stats.LastFail = ext.GitHub.LastFail
	return s.repo.UpdateGitHubStats(ctx, ext.ID, stats)
}
