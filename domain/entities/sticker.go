package entities

import (
	"time"

	"github.com/google/uuid"
)

// StickerPosition is the corner of the face a sticker is pinned to
type StickerPosition string

const (
	StickerTopLeft     StickerPosition = "top-left"
	StickerTopRight    StickerPosition = "top-right"
	StickerBottomLeft  StickerPosition = "bottom-left"
	StickerBottomRight StickerPosition = "bottom-right"
)

// DefaultStickerDuration applies when a tool call omits the duration
const DefaultStickerDuration = 5 * time.Second

// ParseStickerPosition normalises a tool argument. Unknown values pin to the
// top right corner.
func ParseStickerPosition(v string) StickerPosition {
	switch StickerPosition(v) {
	case StickerTopLeft, StickerTopRight, StickerBottomLeft, StickerBottomRight:
		return StickerPosition(v)
	default:
		return StickerTopRight
	}
}

// Sticker is an ephemeral icon overlaid on the face
type Sticker struct {
	ID        string          `json:"id"`
	Icon      string          `json:"icon"`
	Position  StickerPosition `json:"position"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// NewSticker creates a sticker that expires after d
func NewSticker(icon string, position StickerPosition, d time.Duration) Sticker {
	if d <= 0 {
		d = DefaultStickerDuration
	}
	return Sticker{
		ID:        uuid.New().String(),
		Icon:      icon,
		Position:  position,
		ExpiresAt: time.Now().Add(d),
	}
}
