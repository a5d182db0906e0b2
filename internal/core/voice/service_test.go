package voice

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synapse/internal/core/classify"
	"synapse/internal/core/item"
)

type stubTranscriber struct {
	text string
	err  error
}

func (t *stubTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	return t.text, t.err
}

type stubAnalyzer struct {
	result *classify.VoiceResult
}

func (a *stubAnalyzer) AnalyzeVoice(_ context.Context, transcript string) *classify.VoiceResult {
	if a.result != nil {
		return a.result
	}
	return &classify.VoiceResult{Tone: "casual", Summary: transcript}
}

type stubVoiceBlobs struct {
	url string
	err error
}

func (b *stubVoiceBlobs) UploadVoice(_ []byte, itemID string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	return b.url + "/" + itemID + ".webm", nil
}

func newTestVoice(t *testing.T, tr Transcriber, a Analyzer, b BlobStore) (*Service, *item.Repository) {
	t.Helper()
	repo, err := item.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return NewService(tr, a, b, repo), repo
}

func TestSaveVoiceNote(t *testing.T) {
	s, repo := newTestVoice(t,
		&stubTranscriber{text: "remember to call the dentist tomorrow"},
		&stubAnalyzer{result: &classify.VoiceResult{
			Keywords:   []string{"dentist"},
			Tone:       "important",
			Summary:    "Call the dentist",
			Categories: []string{"health"},
		}},
		&stubVoiceBlobs{url: "https://cdn.example.com/voice"})

	it, err := s.SaveVoiceNote(context.Background(), []byte("webm-bytes"), "note.webm")
	require.NoError(t, err)
	assert.Equal(t, "note", it.Type)
	assert.Equal(t, "remember to call the dentist tomorrow", it.RawContent)
	require.NotNil(t, it.Voice)
	assert.Equal(t, "important", it.Voice.Tone)
	assert.Equal(t, "https://cdn.example.com/voice/"+it.ID+".webm", it.Voice.AudioURL)

	stored, err := repo.Get(context.Background(), it.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Voice)
	assert.Equal(t, "Call the dentist", stored.Voice.Summary)
}

func TestSaveVoiceNoteKeepsTranscriptWhenUploadFails(t *testing.T) {
	s, _ := newTestVoice(t,
		&stubTranscriber{text: "quick thought"},
		&stubAnalyzer{},
		&stubVoiceBlobs{err: errors.New("bucket missing")})

	it, err := s.SaveVoiceNote(context.Background(), []byte("webm-bytes"), "")
	require.NoError(t, err)
	assert.Empty(t, it.Voice.AudioURL)
	assert.Equal(t, "quick thought", it.Voice.Transcript)
}

func TestSaveVoiceNoteFailsWithoutSpeech(t *testing.T) {
	s, _ := newTestVoice(t, &stubTranscriber{text: "   "}, &stubAnalyzer{}, &stubVoiceBlobs{})
	_, err := s.SaveVoiceNote(context.Background(), []byte("webm-bytes"), "")
	assert.Error(t, err)

	s, _ = newTestVoice(t, &stubTranscriber{err: errors.New("api down")}, &stubAnalyzer{}, &stubVoiceBlobs{})
	_, err = s.SaveVoiceNote(context.Background(), []byte("webm-bytes"), "")
	assert.Error(t, err)

	_, err = s.SaveVoiceNote(context.Background(), nil, "")
	assert.Error(t, err)
}

func TestWhisperClientTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		_, fh, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "note.webm", fh.Filename)
		w.Write([]byte(`{"text": "hello world"}`))
	}))
	defer srv.Close()

	c := NewWhisperClient("test-key")
	c.endpoint = srv.URL

	text, err := c.Transcribe(context.Background(), []byte("webm-bytes"), "note.webm")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestWhisperClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limited"}}`))
	}))
	defer srv.Close()

	c := NewWhisperClient("test-key")
	c.endpoint = srv.URL
	_, err := c.Transcribe(context.Background(), []byte("x"), "")
	assert.ErrorContains(t, err, "429")

	unconfigured := NewWhisperClient("")
	_, err = unconfigured.Transcribe(context.Background(), []byte("x"), "")
	assert.Error(t, err)
}
