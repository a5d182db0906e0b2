// Package httpapi holds the request/response shapes shared by the HTTP
// handlers. The surface is small enough to keep by hand.
package httpapi

import "github.com/gofiber/fiber/v2"

// Error is the uniform JSON error shape.
func Error(msg string) fiber.Map {
	return fiber.Map{"success": false, "error": msg}
}

// ClassifyRequest is the body of POST /v1/classify.
type ClassifyRequest struct {
	Content   string `json:"content"`
	URL       string `json:"url"`
	ImageData string `json:"imageData"`
}

// FullContent builds the classification input the way captures are
// presented to the model: raw text plus capture annotations.
func (r ClassifyRequest) FullContent() string {
	content := r.Content
	if r.ImageData != "" {
		content += "\n[Image attached - analyze visual content]"
	}
	if r.URL != "" {
		content += "\nURL: " + r.URL
	}
	return content
}

// SaveRequest is the body of POST /v1/save.
type SaveRequest struct {
	Content   string `json:"content"`
	URL       string `json:"url"`
	ImageData string `json:"imageData"`
	Async     bool   `json:"async"`
}

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Query string `json:"query"`
	UseAI *bool  `json:"useAI"`
}

// SubmitJobRequest is the body of POST /v1/jobs.
type SubmitJobRequest struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
