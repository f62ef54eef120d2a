package drive

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/eraiza0816/logawa/logging"
)

const uploadInterval = 5 * time.Minute

type upload struct {
	name string
	path string
}

// Uploader mirrors local partition files into a Google Drive folder. Files
// are named <year>-<month>-<day>_<category>.log and updated in place when
// they already exist. Uploads run on their own ticker; queueing never blocks
// on network I/O and upload failures are logged, never propagated.
type Uploader struct {
	diag     zerolog.Logger
	svc      *drive.Service
	folderID string

	mu    sync.Mutex
	queue []upload

	inFlight atomic.Bool
	stop     chan struct{}
	wg       sync.WaitGroup
}

// New builds the uploader from a service-account credentials file. Callers
// treat an error as "Drive mirroring disabled", not a startup failure.
func New(ctx context.Context, diag zerolog.Logger, credentialsPath, folderID string) (*Uploader, error) {
	if folderID == "" {
		return nil, fmt.Errorf("google drive folder id not configured")
	}
	if _, err := os.Stat(credentialsPath); err != nil {
		return nil, fmt.Errorf("google drive credentials unavailable: %w", err)
	}

	svc, err := drive.NewService(ctx,
		option.WithCredentialsFile(credentialsPath),
		option.WithScopes(drive.DriveFileScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	diag = diag.With().Str("component", "drive").Logger()
	diag.Info().Str("folder", folderID).Msg("google drive mirror initialized")
	return &Uploader{
		diag:     diag,
		svc:      svc,
		folderID: folderID,
		stop:     make(chan struct{}),
	}, nil
}

// QueuePartition schedules the partition file for mirroring.
func (u *Uploader) QueuePartition(path string, key logging.DayKey) {
	name := fmt.Sprintf("%s-%s-%s_%s.log", key.Year, key.Month, key.Day, key.Category)
	u.mu.Lock()
	u.queue = append(u.queue, upload{name: name, path: path})
	u.mu.Unlock()
	u.diag.Debug().Str("name", name).Msg("queued for drive upload")
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

// ProcessQueue drains the queue and uploads each file, creating or updating
// by name within the configured folder.
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

	// The same partition may be queued several times per interval; the last
	// queued path wins.
	latest := make(map[string]upload, len(pending))
	for _, item := range pending {
		latest[item.name] = item
	}

	for _, item := range latest {
		if err := u.uploadFile(ctx, item); err != nil {
			u.diag.Error().Err(err).Str("name", item.name).Msg("drive upload failed")
		}
	}
}

func (u *Uploader) uploadFile(ctx context.Context, item upload) error {
	content, err := os.ReadFile(item.path)
	if err != nil {
		return fmt.Errorf("failed to read partition: %w", err)
	}

	existingID, err := u.findFile(ctx, item.name)
	if err != nil {
		return err
	}

	if existingID != "" {
		_, err = u.svc.Files.Update(existingID, &drive.File{}).
			Media(strings.NewReader(string(content))).
			Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to update drive file %s: %w", item.name, err)
		}
		u.diag.Info().Str("name", item.name).Str("id", existingID).Msg("drive file updated")
		return nil
	}

	created, err := u.svc.Files.Create(&drive.File{
		Name:    item.name,
		Parents: []string{u.folderID},
	}).
		Media(strings.NewReader(string(content))).
		Fields("id").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to create drive file %s: %w", item.name, err)
	}
	u.diag.Info().Str("name", item.name).Str("id", created.Id).Msg("drive file created")
	return nil
}

func (u *Uploader) findFile(ctx context.Context, name string) (string, error) {
	list, err := u.svc.Files.List().
		Q(fmt.Sprintf("name='%s' and '%s' in parents and trashed=false", name, u.folderID)).
		Fields("files(id, name)").
		PageSize(1).
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to search drive folder: %w", err)
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

// TestConnection lists the folder once to verify access.
func (u *Uploader) TestConnection(ctx context.Context) error {
	_, err := u.svc.Files.List().
		Q(fmt.Sprintf("'%s' in parents and trashed=false", u.folderID)).
		Fields("files(id)").
		PageSize(1).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("drive connectivity probe failed: %w", err)
	}
	return nil
}
