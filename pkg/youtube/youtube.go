package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"codentor-backend/pkg/keypool"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

type Video struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Channel   string `json:"channel"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// Searcher finds videos for a query. Each call picks a key from the pool
// and moves on when YouTube reports the quota for that key is spent.
type Searcher struct {
	keys     *keypool.Pool
	endpoint string
}

func NewSearcher(keys []string) *Searcher {
	return &Searcher{
		keys: keypool.New(keys,
			keypool.WithPolicy(keypool.RoundRobin),
			keypool.WithRetryable(isQuotaExceeded),
		),
	}
}

func (s *Searcher) Configured() bool { return s != nil && s.keys.Len() > 0 }

func (s *Searcher) Search(ctx context.Context, query string, max int64) ([]Video, error) {
	if max <= 0 {
		max = 3
	}
	return keypool.Call(ctx, s.keys, func(ctx context.Context, key string) ([]Video, error) {
		opts := []option.ClientOption{option.WithAPIKey(key)}
		if s.endpoint != "" {
			opts = append(opts, option.WithEndpoint(s.endpoint))
		}
		svc, err := yt.NewService(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("youtube client: %w", err)
		}

		resp, err := svc.Search.List([]string{"snippet"}).
			Q(query).
			Type("video").
			SafeSearch("strict").
			MaxResults(max).
			Context(ctx).
			Do()
		if err != nil {
			return nil, fmt.Errorf("youtube search: %w", err)
		}

		videos := make([]Video, 0, len(resp.Items))
		for _, item := range resp.Items {
			if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
				continue
			}
			v := Video{
				ID:      item.Id.VideoId,
				Title:   item.Snippet.Title,
				Channel: item.Snippet.ChannelTitle,
				URL:     "https://www.youtube.com/watch?v=" + item.Id.VideoId,
			}
			if item.Snippet.Thumbnails != nil && item.Snippet.Thumbnails.Medium != nil {
				v.Thumbnail = item.Snippet.Thumbnails.Medium.Url
			}
			videos = append(videos, v)
		}
		return videos, nil
	})
}

func isQuotaExceeded(err error) bool {
	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return false
	}
	if gErr.Code == http.StatusTooManyRequests {
		return true
	}
	if gErr.Code != http.StatusForbidden {
		return false
	}
	for _, e := range gErr.Errors {
		switch e.Reason {
		case "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded", "keyInvalid":
			return true
		}
	}
	return false
}
