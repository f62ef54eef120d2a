package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/eraiza0816/logawa/logging"
)

const (
	apiBase        = "https://api.github.com"
	uploadInterval = 5 * time.Minute
)

type upload struct {
	path    string // repository path, e.g. logs/2025/08/28/messages.log
	local   string
	message string
}

// Uploader mirrors local partition files into a GitHub repository via the
// contents API. Each partition lands at logs/<year>/<month>/<day>/<category>.log
// on the configured branch. Existing files are replaced (the current blob
// SHA is fetched first, as the contents API requires for updates).
type Uploader struct {
	diag   zerolog.Logger
	client *retryablehttp.Client
	token  string
	repo   string // "owner/repository"
	branch string

	mu    sync.Mutex
	queue []upload

	inFlight atomic.Bool
	stop     chan struct{}
	wg       sync.WaitGroup
}

// New builds the uploader. Callers treat an error as "GitHub mirroring
// disabled", not a startup failure.
func New(diag zerolog.Logger, token, repo, branch string) (*Uploader, error) {
	if token == "" || repo == "" {
		return nil, fmt.Errorf("github token or repository not configured")
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil

	diag = diag.With().Str("component", "github").Logger()
	diag.Info().Str("repo", repo).Str("branch", branch).Msg("github mirror initialized")
	return &Uploader{
		diag:   diag,
		client: client,
		token:  token,
		repo:   repo,
		branch: branch,
		stop:   make(chan struct{}),
	}, nil
}

// QueuePartition schedules the partition file for mirroring.
func (u *Uploader) QueuePartition(path string, key logging.DayKey) {
	repoPath := fmt.Sprintf("logs/%s/%s/%s/%s.log", key.Year, key.Month, key.Day, key.Category)
	u.mu.Lock()
	u.queue = append(u.queue, upload{
		path:    repoPath,
		local:   path,
		message: fmt.Sprintf("Update log file: %s.log", key.Category),
	})
	u.mu.Unlock()
	u.diag.Debug().Str("path", repoPath).Msg("queued for github upload")
}

// QueueAll schedules every partition the store currently retains.
func (u *Uploader) QueueAll(store *logging.LocalLogStore) {
	store.WalkPartitions(u.QueuePartition)
}

func (u *Uploader) Start() {
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		ticker := time.NewTicker(uploadInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				u.ProcessQueue(context.Background())
			case <-u.stop:
				return
			}
		}
	}()
}

func (u *Uploader) Stop() {
	close(u.stop)
	u.wg.Wait()
}

// ProcessQueue drains the queue and uploads each file.
func (u *Uploader) ProcessQueue(ctx context.Context) {
	if !u.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer u.inFlight.Store(false)

	u.mu.Lock()
	pending := u.queue
	u.queue = nil
	u.mu.Unlock()
	if len(pending) == 0 {
		return
	}

	latest := make(map[string]upload, len(pending))
	for _, item := range pending {
		latest[item.path] = item
	}

	for _, item := range latest {
		if err := u.uploadFile(ctx, item); err != nil {
			u.diag.Error().Err(err).Str("path", item.path).Msg("github upload failed")
		}
	}
}

func (u *Uploader) uploadFile(ctx context.Context, item upload) error {
	content, err := os.ReadFile(item.local)
	if err != nil {
		return fmt.Errorf("failed to read partition: %w", err)
	}

	sha, err := u.currentSHA(ctx, item.path)
	if err != nil {
		return err
	}

	body := map[string]string{
		"message": item.message,
		"content": base64.StdEncoding.EncodeToString(content),
		"branch":  u.branch,
	}
	if sha != "" {
		body["sha"] = sha
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode contents payload: %w", err)
	}

	url := fmt.Sprintf("%s/repos/%s/contents/%s", apiBase, u.repo, item.path)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build contents request: %w", err)
	}
	u.setHeaders(req)

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("contents request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("contents upload rejected (%d): %s", resp.StatusCode, detail)
	}
	u.diag.Info().Str("path", item.path).Msg("github file uploaded")
	return nil
}

// currentSHA fetches the blob SHA of an existing file, or "" when absent.
func (u *Uploader) currentSHA(ctx context.Context, path string) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/contents/%s?ref=%s", apiBase, u.repo, path, u.branch)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build contents lookup: %w", err)
	}
	u.setHeaders(req)

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("contents lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("contents lookup rejected (%d): %s", resp.StatusCode, detail)
	}

	var meta struct {
		SHA string `json:"sha"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return "", fmt.Errorf("failed to decode contents metadata: %w", err)
	}
	return meta.SHA, nil
}

func (u *Uploader) setHeaders(req *retryablehttp.Request) {
	req.Header.Set("Authorization", "token "+u.token)
	req.Header.Set("User-Agent", "Logawa-Bot")
	req.Header.Set("Accept", "application/vnd.github+json")
}
