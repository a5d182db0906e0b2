package supabase

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/antoineross/supabase-go"
	storage_go "github.com/supabase-community/storage-go"

	"synapse/internal/config"
	"synapse/internal/logger"
)

// Service is the blob store for captured images and voice audio, backed by
// Supabase Storage. In non-production environments without credentials it
// falls back to local files under DataDir, served from /files.
type Service struct {
	log    *logger.Logger
	cfg    config.Config
	client *supabase.Client
}

func New(cfg config.Config) (*Service, error) {
	s := &Service{log: logger.New("BlobStore"), cfg: cfg}
	if cfg.SupabaseURL != "" && cfg.SupabaseServiceKey != "" {
		client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, nil)
		if err != nil {
			if cfg.AppEnv == "production" {
				return nil, fmt.Errorf("initializing Supabase client in production: %w", err)
			}
			s.log.LogWarnf("failed to initialize Supabase client: %v", err)
		} else {
			s.client = client
		}
	} else if cfg.AppEnv == "production" {
		return nil, fmt.Errorf("supabase storage is required in production")
	}
	return s, nil
}

// UploadImage stores a base64 PNG under the item's id and returns its
// public URL.
func (s *Service) UploadImage(base64Data, itemID string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(base64Data)
	if err != nil {
		return "", fmt.Errorf("decoding image data: %w", err)
	}
	return s.upload(s.cfg.SupabaseImageBucket, itemID+".png", "image/png", data)
}

// UploadVoice stores a webm audio blob under the item's id and returns its
// public URL.
func (s *Service) UploadVoice(audio []byte, itemID string) (string, error) {
	return s.upload(s.cfg.SupabaseVoiceBucket, itemID+".webm", "audio/webm", audio)
}

func (s *Service) upload(bucket, name, contentType string, data []byte) (string, error) {
	if s.client != nil {
		upsert := true
		opts := storage_go.FileOptions{ContentType: &contentType, Upsert: &upsert}
		if _, err := s.client.Storage.UploadFile(bucket, name, bytes.NewReader(data), opts); err != nil {
			if s.cfg.AppEnv == "production" {
				return "", fmt.Errorf("uploading %s to bucket %s: %w", name, bucket, err)
			}
			s.log.LogWarnf("supabase upload failed, using local fallback: %v", err)
			return s.saveLocal(bucket, name, data)
		}
		return s.publicURL(bucket, name), nil
	}
	if s.cfg.AppEnv == "production" {
		return "", fmt.Errorf("blob store not configured")
	}
	return s.saveLocal(bucket, name, data)
}

// Delete removes a blob given its public URL. Unknown URLs are ignored.
func (s *Service) Delete(publicURL string) error {
	if publicURL == "" {
		return nil
	}
	name := publicURL[strings.LastIndex(publicURL, "/")+1:]
	bucket := s.cfg.SupabaseImageBucket
	if strings.HasSuffix(name, ".webm") {
		bucket = s.cfg.SupabaseVoiceBucket
	}
	if s.client != nil && strings.Contains(publicURL, "/storage/v1/object/") {
		if _, err := s.client.Storage.RemoveFile(bucket, []string{name}); err != nil {
			return fmt.Errorf("removing %s from bucket %s: %w", name, bucket, err)
		}
		return nil
	}
	if strings.HasPrefix(publicURL, "/files/") {
		_ = os.Remove(filepath.Join(s.cfg.DataDir, strings.TrimPrefix(publicURL, "/files/")))
	}
	return nil
}

func (s *Service) publicURL(bucket, name string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s",
		strings.TrimRight(s.cfg.SupabaseURL, "/"), bucket, name)
}

func (s *Service) saveLocal(bucket, name string, data []byte) (string, error) {
	dir := filepath.Join(s.cfg.DataDir, bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", err
	}
	return "/files/" + bucket + "/" + name, nil
}
