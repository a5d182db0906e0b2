package voice

import (
	"encoding/base64"
	"io"

	"github.com/gofiber/fiber/v2"

	"synapse/internal/server/httpapi"
)

type Handler struct {
	voice *Service
}

func NewHandler(voice *Service) *Handler {
	return &Handler{voice: voice}
}

// HandleVoiceNote accepts a recording as either a multipart "audio" file
// or a JSON body with base64 audio data.
func (h *Handler) HandleVoiceNote(c *fiber.Ctx) error {
	audio, filename, err := readAudio(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(httpapi.Error(err.Error()))
	}

	it, err := h.voice.SaveVoiceNote(c.Context(), audio, filename)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(httpapi.Error("failed to process voice note"))
	}
	return c.JSON(fiber.Map{"success": true, "item": it})
}

func readAudio(c *fiber.Ctx) ([]byte, string, error) {
	if fh, err := c.FormFile("audio"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, "", fiber.NewError(fiber.StatusBadRequest, "unreadable audio file")
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, "", fiber.NewError(fiber.StatusBadRequest, "unreadable audio file")
		}
		return data, fh.Filename, nil
	}

	var req struct {
		AudioData string `json:"audioData"`
		Filename  string `json:"filename"`
	}
	if err := c.BodyParser(&req); err != nil || req.AudioData == "" {
		return nil, "", fiber.NewError(fiber.StatusBadRequest, "audio file or audioData is required")
	}
	data, err := base64.StdEncoding.DecodeString(req.AudioData)
	if err != nil {
		return nil, "", fiber.NewError(fiber.StatusBadRequest, "audioData is not valid base64")
	}
	return data, req.Filename, nil
}
