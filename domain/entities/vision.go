package entities

// VisionSource is what the vision sampler streams to the session
type VisionSource string

const (
	VisionNone   VisionSource = "none"
	VisionCamera VisionSource = "camera"
	VisionScreen VisionSource = "screen"
)

// ParseVisionSource maps a tool argument to a source. Unknown values are none.
func ParseVisionSource(v string) VisionSource {
	switch VisionSource(v) {
	case VisionCamera, VisionScreen:
		return VisionSource(v)
	default:
		return VisionNone
	}
}
