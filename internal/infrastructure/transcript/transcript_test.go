package transcript

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "video-rag-api/pkg/errors"
)

const videoID = "dQw4w9WgXcQ"

func TestExtractVideoID(t *testing.T) {
	valid := []string{
		videoID,
		"https://www.youtube.com/watch?v=" + videoID,
		"youtube.com/watch?v=" + videoID,
		"https://youtube.com/watch?v=" + videoID + "&t=30&list=PL123",
		"https://youtu.be/" + videoID,
		"https://youtu.be/" + videoID + "?t=42",
		"https://www.youtube.com/embed/" + videoID,
		"https://www.youtube.com/shorts/" + videoID,
		"  https://m.youtube.com/watch?v=" + videoID + "  ",
	}
	for _, input := range valid {
		t.Run(input, func(t *testing.T) {
			got, err := ExtractVideoID(input)
			require.NoError(t, err)
			assert.Equal(t, videoID, got)
		})
	}

	invalid := []string{
		"",
		"https://www.youtube.com",
		"https://vimeo.com/123456789",
		"not a url",
		"https://youtu.be/short",
	}
	for _, input := range invalid {
		t.Run("invalid "+input, func(t *testing.T) {
			_, err := ExtractVideoID(input)
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam))
		})
	}
}

type fakeYouTube struct {
	video      *youtube.Video
	videoErr   error
	transcript youtube.VideoTranscript
	scriptErr  error
	gotLang    string
}

func (f *fakeYouTube) GetVideoContext(_ context.Context, _ string) (*youtube.Video, error) {
	if f.videoErr != nil {
		return nil, f.videoErr
	}
	return f.video, nil
}

func (f *fakeYouTube) GetTranscriptCtx(_ context.Context, _ *youtube.Video, lang string) (youtube.VideoTranscript, error) {
	f.gotLang = lang
	if f.scriptErr != nil {
		return nil, f.scriptErr
	}
	return f.transcript, nil
}

func newFetcher(client videoClient, languages ...string) *YouTubeFetcher {
	return &YouTubeFetcher{client: client, languages: languages, timeout: time.Second}
}

func TestFetchJoinsAndNormalizes(t *testing.T) {
	fake := &fakeYouTube{
		video: &youtube.Video{ID: videoID, CaptionTracks: []youtube.CaptionTrack{
			{LanguageCode: "de"},
			{LanguageCode: "en"},
		}},
		transcript: youtube.VideoTranscript{
			{Text: "hello  there"},
			{Text: "\ngeneral\tkenobi "},
		},
	}

	text, lang, err := newFetcher(fake, "en").Fetch(context.Background(), videoID)
	require.NoError(t, err)
	assert.Equal(t, "hello there general kenobi", text)
	assert.Equal(t, "en", lang)
	assert.Equal(t, "en", fake.gotLang)
}

func TestFetchFallsBackToFirstTrack(t *testing.T) {
	fake := &fakeYouTube{
		video:      &youtube.Video{CaptionTracks: []youtube.CaptionTrack{{LanguageCode: "fr"}}},
		transcript: youtube.VideoTranscript{{Text: "bonjour"}},
	}

	_, lang, err := newFetcher(fake, "en").Fetch(context.Background(), videoID)
	require.NoError(t, err)
	assert.Equal(t, "fr", lang)
}

func TestFetchUnknownLanguage(t *testing.T) {
	fake := &fakeYouTube{
		video:      &youtube.Video{CaptionTracks: []youtube.CaptionTrack{{}}},
		transcript: youtube.VideoTranscript{{Text: "words"}},
	}

	_, lang, err := newFetcher(fake).Fetch(context.Background(), videoID)
	require.NoError(t, err)
	assert.Equal(t, "unknown", lang)
}

func TestFetchNotAvailable(t *testing.T) {
	cases := map[string]*fakeYouTube{
		"no tracks": {video: &youtube.Video{}},
		"disabled": {
			video:     &youtube.Video{CaptionTracks: []youtube.CaptionTrack{{LanguageCode: "en"}}},
			scriptErr: youtube.ErrTranscriptDisabled,
		},
		"empty": {
			video: &youtube.Video{CaptionTracks: []youtube.CaptionTrack{{LanguageCode: "en"}}},
		},
	}
	for name, fake := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := newFetcher(fake, "en").Fetch(context.Background(), videoID)
			assert.ErrorIs(t, err, ErrTranscriptNotAvailable)
		})
	}
}

func TestFetchVideoError(t *testing.T) {
	fake := &fakeYouTube{videoErr: errors.New("video unavailable")}

	_, _, err := newFetcher(fake).Fetch(context.Background(), videoID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "video unavailable")
	assert.NotErrorIs(t, err, ErrTranscriptNotAvailable)
}
