package entities

import (
	"errors"
	"time"
)

// Device represents a face client allowed to open a conversation
type Device struct {
	ID           string    `json:"id" bson:"_id"`
	SerialNumber string    `json:"serial_number" bson:"serial_number"`
	Name         string    `json:"name" bson:"name"`
	Model        string    `json:"model" bson:"model"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// Validate checks the fields required to register a device
func (d *Device) Validate() error {
	if d.SerialNumber == "" {
		return errors.New("serial number is required")
	}
	if d.Model == "" {
		return errors.New("model is required")
	}
	return nil
}
