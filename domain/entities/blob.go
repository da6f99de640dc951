package entities

// Blob is a base64 payload tagged with its MIME type, ready for the wire
type Blob struct {
	Data     string `json:"data"`
	MIMEType string `json:"mime_type"`
}
