package save

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"synapse/internal/core/classify"
	"synapse/internal/core/item"
	"synapse/internal/core/queue"
	"synapse/internal/logger"
)

// Classifier analyzes captured content.
type Classifier interface {
	Classify(ctx context.Context, content, url, imageBase64 string) (*classify.Classification, error)
}

// BlobStore persists captured images.
type BlobStore interface {
	UploadImage(base64Data, itemID string) (string, error)
	Delete(publicURL string) error
}

// Repo is the slice of the item repository the save workflow needs.
type Repo interface {
	Create(ctx context.Context, it *item.Item) error
	Update(ctx context.Context, it *item.Item) error
	Get(ctx context.Context, id string) (*item.Item, error)
}

// classifyPayload drives the classification job for one saved item.
type classifyPayload struct {
	ItemID    string
	Content   string
	URL       string
	ImageData string
}

// imagePayload drives the image upload job for one saved item.
type imagePayload struct {
	ItemID    string
	ImageData string
}

// Outcome is what a save returns: the stored item plus the jobs that
// enrich it. In async mode the item is still the placeholder.
type Outcome struct {
	Item          *item.Item `json:"item"`
	ClassifyJobID string     `json:"classifyJobId"`
	ImageJobID    string     `json:"imageJobId,omitempty"`
	Completed     bool       `json:"completed"`
}

// Service implements the capture workflow: persist a placeholder item
// immediately, then enrich it through queued classification and image
// upload jobs.
type Service struct {
	repo        Repo
	classifier  Classifier
	blobs       BlobStore
	queue       *queue.Queue
	waitTimeout time.Duration
	log         *logger.Logger
}

func NewService(repo Repo, classifier Classifier, blobs BlobStore, q *queue.Queue, waitTimeout time.Duration) *Service {
	if waitTimeout <= 0 {
		waitTimeout = 45 * time.Second
	}
	s := &Service{
		repo:        repo,
		classifier:  classifier,
		blobs:       blobs,
		queue:       q,
		waitTimeout: waitTimeout,
		log:         logger.New("Save"),
	}
	q.Handle(queue.TypeClassify, s.handleClassifyJob)
	q.Handle(queue.TypeImageUpload, s.handleImageJob)
	return s
}

// Save captures content. The placeholder item is persisted before any job
// runs, so a capture is never lost to a slow or failing model. When async
// is false, Save waits for the enrichment jobs up to the wait timeout.
func (s *Service) Save(ctx context.Context, content, url, imageData string, async bool) (*Outcome, error) {
	if strings.TrimSpace(content) == "" && imageData == "" {
		return nil, fmt.Errorf("content or image is required")
	}

	it := placeholderItem(content, url, imageData)
	if err := s.repo.Create(ctx, it); err != nil {
		return nil, fmt.Errorf("persisting item: %w", err)
	}

	classifyID, err := s.queue.Submit(queue.TypeClassify, classifyPayload{
		ItemID:    it.ID,
		Content:   content,
		URL:       url,
		ImageData: imageData,
	})
	if err != nil {
		return nil, fmt.Errorf("submitting classification job: %w", err)
	}

	out := &Outcome{Item: it, ClassifyJobID: classifyID}
	if imageData != "" {
		imageID, err := s.queue.Submit(queue.TypeImageUpload, imagePayload{
			ItemID:    it.ID,
			ImageData: imageData,
		})
		if err != nil {
			return nil, fmt.Errorf("submitting image upload job: %w", err)
		}
		out.ImageJobID = imageID
	}

	if async {
		return out, nil
	}
	return s.await(ctx, out)
}

// await blocks until the enrichment jobs settle, then reloads the item.
// A failed or timed-out job leaves the placeholder in place; the capture
// itself already succeeded.
func (s *Service) await(ctx context.Context, out *Outcome) (*Outcome, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.waitTimeout)
	defer cancel()

	g, waitCtx := errgroup.WithContext(waitCtx)
	jobIDs := []string{out.ClassifyJobID}
	if out.ImageJobID != "" {
		jobIDs = append(jobIDs, out.ImageJobID)
	}
	completed := make([]bool, len(jobIDs))
	for i, id := range jobIDs {
		g.Go(func() error {
			j, err := s.queue.Wait(waitCtx, id)
			if err != nil {
				return err
			}
			completed[i] = j.Status == queue.StatusCompleted
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.LogWarnf("save did not settle in time: %v", err)
	} else {
		out.Completed = true
		for _, ok := range completed {
			if !ok {
				out.Completed = false
			}
		}
	}

	fresh, err := s.repo.Get(ctx, out.Item.ID)
	if err != nil {
		s.log.LogWarnf("reloading item %s after save: %v", out.Item.ID, err)
		return out, nil
	}
	out.Item = fresh
	return out, nil
}

// handleClassifyJob enriches the placeholder with the model's
// classification. Errors are returned so the queue retries them.
func (s *Service) handleClassifyJob(ctx context.Context, payload interface{}) (interface{}, error) {
	p, ok := payload.(classifyPayload)
	if !ok {
		return nil, fmt.Errorf("unexpected payload type %T", payload)
	}

	c, err := s.classifier.Classify(ctx, p.Content, p.URL, p.ImageData)
	if err != nil {
		return nil, err
	}

	it, err := s.repo.Get(ctx, p.ItemID)
	if err != nil {
		return nil, fmt.Errorf("loading item %s: %w", p.ItemID, err)
	}
	it.Type = c.ContentType
	it.Metadata.Title = c.Title
	it.Metadata.Summary = c.Summary
	mergeMetadata(&it.Metadata, c.Metadata)
	it.Keywords = c.Keywords
	it.Tags = c.Tags
	if err := s.repo.Update(ctx, it); err != nil {
		return nil, fmt.Errorf("updating item %s: %w", p.ItemID, err)
	}
	return c, nil
}

// handleImageJob uploads the capture's image and swaps the inline data
// URL for the blob store's public one.
func (s *Service) handleImageJob(ctx context.Context, payload interface{}) (interface{}, error) {
	p, ok := payload.(imagePayload)
	if !ok {
		return nil, fmt.Errorf("unexpected payload type %T", payload)
	}

	url, err := s.blobs.UploadImage(p.ImageData, p.ItemID)
	if err != nil {
		return nil, err
	}

	it, err := s.repo.Get(ctx, p.ItemID)
	if err != nil {
		return nil, fmt.Errorf("loading item %s: %w", p.ItemID, err)
	}
	it.Image = url
	if err := s.repo.Update(ctx, it); err != nil {
		return nil, fmt.Errorf("updating item %s: %w", p.ItemID, err)
	}
	return url, nil
}

// placeholderItem is what gets stored before classification finishes.
// The inline data URL keeps the image renderable until the upload job
// replaces it.
func placeholderItem(content, url, imageData string) *item.Item {
	it := &item.Item{
		ID:         uuid.NewString(),
		Type:       "note",
		RawContent: content,
		URL:        url,
		Metadata:   item.Metadata{Title: placeholderTitle(content)},
		Keywords:   []string{},
		Tags:       []string{},
	}
	if imageData != "" {
		it.Type = "image"
		it.Image = "data:image/png;base64," + imageData
	}
	return it
}

func placeholderTitle(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return "Image capture"
	}
	if len(content) > 60 {
		return content[:60] + "..."
	}
	return content
}

// mergeMetadata copies the classification's extracted fields into the
// stored metadata without clobbering title and summary set by the caller.
func mergeMetadata(dst *item.Metadata, src item.Metadata) {
	if src.Author != "" {
		dst.Author = src.Author
	}
	if src.Price != "" {
		dst.Price = src.Price
	}
	if src.Date != "" {
		dst.Date = src.Date
	}
	if src.Source != "" {
		dst.Source = src.Source
	}
	if src.ImageURL != "" {
		dst.ImageURL = src.ImageURL
	}
	if src.Description != "" {
		dst.Description = src.Description
	}
	if src.ImageAnalysis != "" {
		dst.ImageAnalysis = src.ImageAnalysis
	}
	if src.ExtractedText != "" {
		dst.ExtractedText = src.ExtractedText
	}
	if len(src.Colors) > 0 {
		dst.Colors = src.Colors
	}
	if src.VisualType != "" {
		dst.VisualType = src.VisualType
	}
}
