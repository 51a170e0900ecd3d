package summarize

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kkdai/youtube/v2"
)

var (
	// ErrNotYouTube is returned when no video id can be found in a URL.
	ErrNotYouTube = errors.New("not a youtube url")
	// ErrNoTranscript is returned when a video has no caption tracks.
	ErrNoTranscript = errors.New("no transcript available")

	videoIDPattern = regexp.MustCompile(`(?:https?://)?(?:www\.|m\.)?(?:youtube|youtu|youtube-nocookie)\.(?:com|be)/(?:watch\?v=|embed/|v/|shorts/|.+\?v=)?([^&=%?/\s]{11})`)
)

// VideoID extracts the 11 character video id from a YouTube URL.
func VideoID(rawURL string) (string, error) {
	m := videoIDPattern.FindStringSubmatch(rawURL)
	if len(m) < 2 {
		return "", ErrNotYouTube
	}
	return m[1], nil
}

// Transcript is the joined caption text of a video.
type Transcript struct {
	VideoID  string
	Language string
	Text     string
}

// TranscriptSource loads captions for a video.
type TranscriptSource interface {
	Transcript(ctx context.Context, videoID string, languages []string) (Transcript, error)
}

// YouTubeTranscripts reads caption tracks through the YouTube player API.
type YouTubeTranscripts struct {
	client *youtube.Client
}

func NewYouTubeTranscripts() *YouTubeTranscripts {
	return &YouTubeTranscripts{client: &youtube.Client{}}
}

// Transcript picks the first available language from languages, falling
// back to the first caption track of the video.
func (y *YouTubeTranscripts) Transcript(ctx context.Context, videoID string, languages []string) (Transcript, error) {
	video, err := y.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return Transcript{}, fmt.Errorf("load video %s: %w", videoID, err)
	}
	available := make([]string, 0, len(video.CaptionTracks))
	for _, track := range video.CaptionTracks {
		available = append(available, track.LanguageCode)
	}
	lang, ok := PickLanguage(available, languages)
	if !ok {
		return Transcript{}, ErrNoTranscript
	}
	segments, err := y.client.GetTranscriptCtx(ctx, video, lang)
	if err != nil {
		return Transcript{}, fmt.Errorf("load transcript %s/%s: %w", videoID, lang, err)
	}
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if t := strings.TrimSpace(seg.Text); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return Transcript{}, ErrNoTranscript
	}
	return Transcript{VideoID: videoID, Language: lang, Text: strings.Join(parts, " ")}, nil
}

// PickLanguage returns the first preferred language present in available,
// or the first available language.
func PickLanguage(available, preferred []string) (string, bool) {
	if len(available) == 0 {
		return "", false
	}
	for _, want := range preferred {
		for _, have := range available {
			if strings.EqualFold(have, want) {
				return have, true
			}
		}
	}
	return available[0], true
}
