package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Vendor identifies the upstream API family serving a model.
type Vendor string

const (
	VendorOpenAI     Vendor = "openai"
	VendorAnthropic  Vendor = "anthropic"
	VendorGoogle     Vendor = "google"
	VendorOpenRouter Vendor = "openrouter"
)

// Vendors lists every supported vendor in display order.
func Vendors() []Vendor {
	return []Vendor{VendorOpenAI, VendorAnthropic, VendorGoogle, VendorOpenRouter}
}

func (v Vendor) Valid() bool {
	for _, known := range Vendors() {
		if v == known {
			return true
		}
	}
	return false
}

// Capabilities are the per-model feature flags the chat flow routes on.
type Capabilities struct {
	Vision          bool `json:"vision"`
	ImageGeneration bool `json:"image_generation"`
	Thinking        bool `json:"thinking"`
}

// Descriptor is a catalog entry for a model.
type Descriptor struct {
	ID           int64        `json:"id"`
	APIName      string       `json:"api_name"`
	DisplayName  string       `json:"name"`
	Vendor       Vendor       `json:"vendor"`
	Capabilities Capabilities `json:"capabilities"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (d *Descriptor) Validate() error {
	if strings.TrimSpace(d.APIName) == "" {
		return errors.New("api name is required")
	}
	if strings.TrimSpace(d.DisplayName) == "" {
		return errors.New("display name is required")
	}
	if !d.Vendor.Valid() {
		return fmt.Errorf("invalid vendor: %s", d.Vendor)
	}
	return nil
}

type CreateRequest struct {
	APIName      string       `json:"api_name" validate:"required"`
	DisplayName  string       `json:"name" validate:"required"`
	Vendor       Vendor       `json:"vendor" validate:"required,oneof=openai anthropic google openrouter"`
	Capabilities Capabilities `json:"capabilities"`
}

type UpdateRequest CreateRequest

type DeleteResponse struct {
	Message string `json:"message"`
}
