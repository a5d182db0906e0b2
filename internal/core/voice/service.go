package voice

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"synapse/internal/core/classify"
	"synapse/internal/core/item"
	"synapse/internal/logger"
)

// Transcriber turns audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Analyzer extracts keywords, tone, and a summary from a transcript.
type Analyzer interface {
	AnalyzeVoice(ctx context.Context, transcript string) *classify.VoiceResult
}

// BlobStore persists the recorded audio.
type BlobStore interface {
	UploadVoice(audio []byte, itemID string) (string, error)
}

// Repo is the slice of the item repository voice notes need.
type Repo interface {
	Create(ctx context.Context, it *item.Item) error
}

// Service turns a voice recording into a stored note: transcribe,
// analyze, upload the audio, persist the item.
type Service struct {
	transcriber Transcriber
	analyzer    Analyzer
	blobs       BlobStore
	repo        Repo
	log         *logger.Logger
}

func NewService(t Transcriber, a Analyzer, b BlobStore, r Repo) *Service {
	return &Service{transcriber: t, analyzer: a, blobs: b, repo: r, log: logger.New("Voice")}
}

// SaveVoiceNote processes one recording. Transcription failure aborts the
// save; analysis and audio upload degrade gracefully.
func (s *Service) SaveVoiceNote(ctx context.Context, audio []byte, filename string) (*item.Item, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("audio is required")
	}

	transcript, err := s.transcriber.Transcribe(ctx, audio, filename)
	if err != nil {
		return nil, fmt.Errorf("transcribing audio: %w", err)
	}
	if strings.TrimSpace(transcript) == "" {
		return nil, fmt.Errorf("transcription returned no speech")
	}

	analysis := s.analyzer.AnalyzeVoice(ctx, transcript)

	it := &item.Item{
		ID:         uuid.NewString(),
		Type:       "note",
		RawContent: transcript,
		Metadata: item.Metadata{
			Title:   voiceTitle(transcript),
			Summary: analysis.Summary,
			Source:  "voice",
		},
		Keywords: analysis.Keywords,
		Tags:     analysis.Categories,
		Voice: &item.VoiceAnalysis{
			Transcript: transcript,
			Keywords:   analysis.Keywords,
			Tone:       analysis.Tone,
			Summary:    analysis.Summary,
			Categories: analysis.Categories,
		},
	}

	if url, err := s.blobs.UploadVoice(audio, it.ID); err != nil {
		s.log.LogWarnf("voice audio upload failed, keeping transcript only: %v", err)
	} else {
		it.Voice.AudioURL = url
	}

	if err := s.repo.Create(ctx, it); err != nil {
		return nil, fmt.Errorf("persisting voice note: %w", err)
	}
	return it, nil
}

func voiceTitle(transcript string) string {
	transcript = strings.TrimSpace(transcript)
	if len(transcript) > 60 {
		return transcript[:60] + "..."
	}
	return transcript
}
