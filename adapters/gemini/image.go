package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/wajah/domain/entities"
	"github.com/satriahrh/wajah/internal/audio"
)

// GeminiImages implements repositories.ImageGenerator with Imagen
type GeminiImages struct {
	client *genai.Client
	config GeminiConfig
	logger *zap.Logger
}

// Generate renders one image for prompt, retrying transient failures
func (g *GeminiImages) Generate(ctx context.Context, prompt string) (entities.Blob, error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.timeout())
	defer cancel()

	config := &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: "image/png",
	}

	var response *genai.GenerateImagesResponse
	var err error
	for attempt := 0; attempt < imageAttempts; attempt++ {
		response, err = g.client.Models.GenerateImages(ctx, g.config.ImageModel, prompt, config)
		if err == nil {
			break
		}

		g.logger.Warn("Failed to generate image, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < imageAttempts-1 {
			select {
			case <-time.After(time.Duration(attempt+1) * time.Second):
			case <-ctx.Done():
				return entities.Blob{}, ctx.Err()
			}
		}
	}
	if err != nil {
		return entities.Blob{}, fmt.Errorf("failed to generate image: %w", err)
	}

	for _, img := range response.GeneratedImages {
		if img == nil || img.Image == nil || len(img.Image.ImageBytes) == 0 {
			continue
		}
		mime := img.Image.MIMEType
		if mime == "" {
			mime = config.OutputMIMEType
		}
		return entities.Blob{Data: audio.EncodeBase64(img.Image.ImageBytes), MIMEType: mime}, nil
	}
	return entities.Blob{}, errors.New("no image generated")
}
