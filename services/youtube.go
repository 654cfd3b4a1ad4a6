package services

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"nightreel/types"
	"nightreel/video"
)

// VideoMetadata is what YouTube shows for an upload.
type VideoMetadata struct {
	Title       string
	Description string
	Tags        []string
	CategoryID  string
}

var defaultTags = []string{"shorts", "vertical video", "narrated"}

// YouTubePublisher uploads finished videos as Shorts.
type YouTubePublisher struct {
	service *youtube.Service
	privacy string
	logger  zerolog.Logger
}

func NewYouTubePublisher(ctx context.Context, serviceAccountFile, privacy string, logger zerolog.Logger) (*YouTubePublisher, error) {
	data, err := os.ReadFile(serviceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read service account file: %w", err)
	}

	cfg, err := google.JWTConfigFromJSON(data, youtube.YoutubeUploadScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account: %w", err)
	}

	service, err := youtube.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create YouTube service: %w", err)
	}

	if privacy == "" {
		privacy = "private"
	}
	return &YouTubePublisher{
		service: service,
		privacy: privacy,
		logger:  logger.With().Str("publisher", "youtube").Logger(),
	}, nil
}

func (u *YouTubePublisher) Name() string { return "youtube" }

func (u *YouTubePublisher) Publish(ctx context.Context, job *types.Job, res *video.Result) (string, error) {
	file, err := os.Open(res.Output)
	if err != nil {
		return "", fmt.Errorf("failed to open video file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat video file: %w", err)
	}
	u.logger.Info().Str("file", res.Output).Float64("mb", float64(info.Size())/(1024*1024)).Msg("uploading")

	metadata := GenerateMetadata(job)
	upload := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       metadata.Title,
			Description: metadata.Description,
			Tags:        metadata.Tags,
			CategoryId:  metadata.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           u.privacy,
			SelfDeclaredMadeForKids: false,
		},
	}

	response, err := u.service.Videos.Insert([]string{"snippet", "status"}, upload).
		Media(file).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload video: %w", err)
	}

	return "https://youtube.com/shorts/" + response.Id, nil
}

// GenerateMetadata builds the upload snippet for a job. Titles are cut to
// YouTube's 100 character limit; the description falls back to the
// narration text of the scenes.
func GenerateMetadata(job *types.Job) VideoMetadata {
	title := strings.TrimSpace(job.Title)
	if title == "" {
		title = job.ID
	}
	if r := []rune(title); len(r) > 100 {
		title = string(r[:97]) + "..."
	}

	description := strings.TrimSpace(job.Description)
	if description == "" {
		parts := make([]string, 0, len(job.Scenes))
		for _, s := range job.Scenes {
			if t := strings.TrimSpace(s.Text); t != "" {
				parts = append(parts, t)
			}
		}
		description = strings.Join(parts, " ")
	}
	if r := []rune(description); len(r) > 4500 {
		description = string(r[:4497]) + "..."
	}
	description += "\n\n#shorts"

	tags := job.Tags
	if len(tags) == 0 {
		tags = defaultTags
	}

	return VideoMetadata{
		Title:       title,
		Description: description,
		Tags:        tags,
		CategoryID:  "22",
	}
}
