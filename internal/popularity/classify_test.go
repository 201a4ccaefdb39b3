package popularity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/crosschart/crosschart/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		source models.Source
		err    error
		want   ErrorKind
	}{
		{"nil error", models.SourceSpotify, nil, KindOther},

		{"youtube quota", models.SourceYouTube, errors.New("youtube API returned 403: quotaExceeded"), KindRateLimit},
		{"youtube quota words", models.SourceYouTube, errors.New("daily quota exceeded for project"), KindRateLimit},
		{"youtube forbidden", models.SourceYouTube, errors.New("youtube API returned 403: forbidden"), KindAuthentication},
		{"youtube video missing", models.SourceYouTube, errors.New("video dQw4w9WgXcQ not found"), KindMissingData},
		{"youtube timeout", models.SourceYouTube, errors.New("network error: dial tcp: i/o timeout"), KindNetwork},
		{"youtube decode", models.SourceYouTube, errors.New("failed to decode statistics response: unexpected EOF"), KindParsing},
		{"youtube unmatched", models.SourceYouTube, errors.New("something odd happened"), KindOther},

		{"spotify 429", models.SourceSpotify, errors.New("spotify API returned 429: too many requests"), KindRateLimit},
		{"spotify rate limit words", models.SourceSpotify, errors.New("rate limit hit, retry later"), KindRateLimit},
		{"spotify no popularity", models.SourceSpotify, errors.New("no popularity returned for track abc"), KindMissingData},
		{"spotify conversion", models.SourceSpotify, fmt.Errorf("error converting spotify URL %q: no track id", "x"), KindParsing},
		{"spotify decode", models.SourceSpotify, errors.New("failed to decode track response: invalid character"), KindParsing},
		{"spotify unauthorized", models.SourceSpotify, errors.New("spotify API returned 401: invalid token"), KindAuthentication},
		{"spotify network", models.SourceSpotify, errors.New("network error: connection refused"), KindNetwork},
		{"spotify unmatched", models.SourceSpotify, errors.New("weird failure"), KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.source, tt.err); got != tt.want {
				t.Errorf("Classify(%s, %v) = %s, want %s", tt.source, tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorKindString(t *testing.T) {
	want := map[ErrorKind]string{
		KindAuthentication: "authentication",
		KindRateLimit:      "rate_limit",
		KindParsing:        "parsing",
		KindMissingData:    "missing_data",
		KindNetwork:        "network",
		KindOther:          "other",
	}
	for kind, name := range want {
		if kind.String() != name {
			t.Errorf("%d.String() = %q, want %q", kind, kind.String(), name)
		}
	}
}
