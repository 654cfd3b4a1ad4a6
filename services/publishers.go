package services

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"nightreel/common"
)

// PublishersFromEnv enables the S3 publisher when S3_BUCKET is set and the
// YouTube publisher when YOUTUBE_SERVICE_ACCOUNT is set. A publisher
// that fails to initialise is skipped and the pipeline runs video-only.
func PublishersFromEnv(ctx context.Context, logger zerolog.Logger) []Publisher {
	var publishers []Publisher

	if s3cfg := common.S3ConfigFromEnv(); s3cfg.Bucket != "" {
		store, err := common.NewS3(ctx, s3cfg)
		if err != nil {
			logger.Warn().Err(err).Msg("S3 publisher not initialized")
		} else {
			publishers = append(publishers, NewS3Publisher(store, logger))
		}
	}

	if file := os.Getenv("YOUTUBE_SERVICE_ACCOUNT"); file != "" {
		yt, err := NewYouTubePublisher(ctx, file, os.Getenv("YOUTUBE_PRIVACY"), logger)
		if err != nil {
			logger.Warn().Err(err).Msg("YouTube publisher not initialized")
		} else {
			publishers = append(publishers, yt)
		}
	}

	if len(publishers) == 0 {
		logger.Info().Msg("no publishers configured, videos stay in the output directory")
	}
	return publishers
}
