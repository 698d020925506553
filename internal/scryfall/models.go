package scryfall

import (
	"errors"
	"fmt"
	"strings"
)

// Card represents a card printing as returned by Scryfall.
type Card struct {
	// Core fields
	ID       string `json:"id"`
	OracleID string `json:"oracle_id"`
	Lang     string `json:"lang"`

	// Card details
	Name          string     `json:"name"`
	PrintedName   string     `json:"printed_name,omitempty"`
	ScryfallURI   string     `json:"scryfall_uri"`
	Layout        string     `json:"layout"`
	ImageURIs     *ImageURIs `json:"image_uris,omitempty"`
	ManaCost      string     `json:"mana_cost,omitempty"`
	CMC           *float64   `json:"cmc,omitempty"`
	TypeLine      string     `json:"type_line"`
	ColorIdentity []string   `json:"color_identity,omitempty"`

	// Print details
	SetCode         string `json:"set"`
	SetName         string `json:"set_name"`
	CollectorNumber string `json:"collector_number"`
	Rarity          string `json:"rarity"`

	// Card faces (for DFCs, MDFCs, split cards)
	CardFaces []CardFace `json:"card_faces,omitempty"`
}

// CardFace represents one face of a multi-faced card.
type CardFace struct {
	Name        string     `json:"name"`
	PrintedName string     `json:"printed_name,omitempty"`
	ManaCost    string     `json:"mana_cost,omitempty"`
	TypeLine    string     `json:"type_line"`
	ImageURIs   *ImageURIs `json:"image_uris,omitempty"`
}

// ImageURIs contains URLs for card images in various sizes.
type ImageURIs struct {
	Small      string `json:"small"`
	Normal     string `json:"normal"`
	Large      string `json:"large"`
	PNG        string `json:"png"`
	ArtCrop    string `json:"art_crop"`
	BorderCrop string `json:"border_crop"`
}

// Thumbnail returns the small image of the card, falling back to the first
// face that carries images. Returns "" when no image is known.
func (c *Card) Thumbnail() string {
	return c.image(func(u *ImageURIs) string { return u.Small })
}

// ImageURL returns the normal-sized image used for previews.
func (c *Card) ImageURL() string {
	return c.image(func(u *ImageURIs) string { return u.Normal })
}

func (c *Card) image(pick func(*ImageURIs) string) string {
	if c.ImageURIs != nil {
		if uri := pick(c.ImageURIs); uri != "" {
			return uri
		}
	}
	for _, face := range c.CardFaces {
		if face.ImageURIs != nil {
			if uri := pick(face.ImageURIs); uri != "" {
				return uri
			}
		}
	}
	return ""
}

// LocalizedName returns the printed (translated) name of the card. Multi-faced
// cards join their face names with " // ". Falls back to Name.
func (c *Card) LocalizedName() string {
	if c.PrintedName != "" {
		return c.PrintedName
	}
	var faces []string
	for _, face := range c.CardFaces {
		if face.PrintedName != "" {
			faces = append(faces, face.PrintedName)
		}
	}
	if len(faces) > 0 {
		return strings.Join(faces, " // ")
	}
	return c.Name
}

// ManaCostText returns the mana cost, joining face costs for multi-faced cards.
func (c *Card) ManaCostText() string {
	if c.ManaCost != "" || len(c.CardFaces) == 0 {
		return c.ManaCost
	}
	var costs []string
	for _, face := range c.CardFaces {
		if face.ManaCost != "" {
			costs = append(costs, face.ManaCost)
		}
	}
	return strings.Join(costs, " // ")
}

// Catalog is a list of strings, e.g. autocomplete suggestions.
type Catalog struct {
	Object      string   `json:"object"`
	TotalValues int      `json:"total_values"`
	Data        []string `json:"data"`
}

// SearchResult represents search results from Scryfall.
type SearchResult struct {
	Object     string `json:"object"`
	TotalCards int    `json:"total_cards"`
	HasMore    bool   `json:"has_more"`
	NextPage   string `json:"next_page,omitempty"`
	Data       []Card `json:"data"`
}

// APIError represents an error object returned by the Scryfall API.
type APIError struct {
	Object   string   `json:"object"`
	Code     string   `json:"code"`
	Status   int      `json:"status"`
	Details  string   `json:"details"`
	Type     string   `json:"type,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// LookupError is returned by every client operation that failed, either
// because the upstream answered with a non-success status or because the
// request never produced a usable response. Status is 0 for the latter.
type LookupError struct {
	Op      string
	Status  int
	Code    string
	Details string
	Err     error
}

// Error implements the error interface for LookupError.
func (e *LookupError) Error() string {
	switch {
	case e.Status != 0 && e.Details != "":
		return fmt.Sprintf("%s: Scryfall API error (HTTP %d): %s", e.Op, e.Status, e.Details)
	case e.Status != 0:
		return fmt.Sprintf("%s: Scryfall API error (HTTP %d)", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: lookup failed: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: lookup failed", e.Op)
	}
}

// Unwrap returns the underlying transport or decode error, if any.
func (e *LookupError) Unwrap() error {
	return e.Err
}

// HasStatus reports whether the upstream answered with an HTTP status.
func (e *LookupError) HasStatus() bool {
	return e.Status != 0
}

// IsNotFound returns true if err is a LookupError carrying HTTP 404.
func IsNotFound(err error) bool {
	var le *LookupError
	return errors.As(err, &le) && le.Status == 404
}
