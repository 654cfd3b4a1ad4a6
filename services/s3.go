package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"nightreel/types"
	"nightreel/video"
)

// ObjectStore is the subset of *common.S3 the publisher uses.
type ObjectStore interface {
	Key(name string) string
	URI(key string) string
	PutFile(ctx context.Context, key, path string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// S3Publisher copies the video and its script.json to <prefix>/<job id>/.
// An object that already exists is not uploaded again, so redelivered
// jobs do not duplicate work.
type S3Publisher struct {
	store  ObjectStore
	logger zerolog.Logger
}

func NewS3Publisher(store ObjectStore, logger zerolog.Logger) *S3Publisher {
	return &S3Publisher{store: store, logger: logger.With().Str("publisher", "s3").Logger()}
}

func (s *S3Publisher) Name() string { return "s3" }

func (s *S3Publisher) Publish(ctx context.Context, job *types.Job, res *video.Result) (string, error) {
	videoKey := s.store.Key(job.ID + "/" + filepath.Base(res.Output))
	if err := s.upload(ctx, videoKey, res.Output); err != nil {
		return "", err
	}

	script := ScriptPath(res.Output)
	if _, err := os.Stat(script); err == nil {
		if err := s.upload(ctx, s.store.Key(job.ID+"/script.json"), script); err != nil {
			return "", err
		}
	}

	return s.store.URI(videoKey), nil
}

func (s *S3Publisher) upload(ctx context.Context, key, path string) error {
	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check %s: %w", key, err)
	}
	if exists {
		s.logger.Info().Str("key", key).Msg("object already uploaded, skipping")
		return nil
	}
	if err := s.store.PutFile(ctx, key, path); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	s.logger.Info().Str("key", key).Msg("uploaded")
	return nil
}
