package firebase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/eraiza0816/logawa/logging"
)

// Store implements logging.RemoteStore on Firestore. Day documents live at
// <category>/<year>/<month>/<day>; one WriteBatch per sync cycle keeps the
// cycle's commits atomic.
type Store struct {
	diag   zerolog.Logger
	client *firestore.Client
}

// New builds a Firestore-backed store from a service-account credentials
// file. A missing file is returned as-is so the caller can self-disable the
// remote path without treating it as a failure.
func New(ctx context.Context, diag zerolog.Logger, credentialsPath string) (*Store, error) {
	raw, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read firebase credentials: %w", err)
	}

	var credentials struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(raw, &credentials); err != nil {
		return nil, fmt.Errorf("failed to parse firebase credentials: %w", err)
	}
	if credentials.ProjectID == "" {
		return nil, fmt.Errorf("firebase credentials missing project_id")
	}

	client, err := firestore.NewClient(ctx, credentials.ProjectID, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	diag = diag.With().Str("component", "firebase").Logger()
	diag.Info().Str("project", credentials.ProjectID).Msg("firestore store initialized")
	return &Store{diag: diag, client: client}, nil
}

func (s *Store) doc(key logging.DayKey) *firestore.DocumentRef {
	return s.client.Collection(key.CollectionPath()).Doc(key.DocumentID())
}

// GetDocument returns the day document, or (nil, nil) when it does not exist.
func (s *Store) GetDocument(ctx context.Context, key logging.DayKey) (*logging.DayDocument, error) {
	snapshot, err := s.doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get document %s/%s: %w", key.CollectionPath(), key.DocumentID(), err)
	}

	var doc logging.DayDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s/%s: %w", key.CollectionPath(), key.DocumentID(), err)
	}
	return &doc, nil
}

// BatchCommit writes all documents in a single atomic batch.
func (s *Store) BatchCommit(ctx context.Context, writes []logging.DocumentWrite) error {
	if len(writes) == 0 {
		return nil
	}
	batch := s.client.Batch()
	for _, write := range writes {
		batch.Set(s.doc(write.Key), write.Document)
	}
	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch of %d documents: %w", len(writes), err)
	}
	return nil
}

// Ping lists root collections as a connectivity probe; it mutates nothing.
func (s *Store) Ping(ctx context.Context) error {
	iter := s.client.Collections(ctx)
	if _, err := iter.Next(); err != nil && err != iterator.Done {
		return fmt.Errorf("firestore connectivity probe failed: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
