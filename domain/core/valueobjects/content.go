package valueobjects

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"cardtree-backend/domain/config"
	pkgerrors "cardtree-backend/pkg/errors"
)

// NodeContent is a value object for a node's display metadata.
// Title and description are opaque to the tree engine.
type NodeContent struct {
	title       string
	description string
}

// NewNodeContent creates content with validation using default configuration
func NewNodeContent(title, description string) (NodeContent, error) {
	return NewNodeContentWithConfig(title, description, config.DefaultDomainConfig())
}

// NewNodeContentWithConfig creates content with validation and configuration
func NewNodeContentWithConfig(title, description string, cfg *config.DomainConfig) (NodeContent, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)

	if title == "" {
		return NodeContent{}, pkgerrors.NewValidationError("title cannot be empty")
	}

	titleLength := utf8.RuneCountInString(title)
	if titleLength > cfg.MaxTitleLength {
		return NodeContent{}, fmt.Errorf("title exceeds maximum length of %d characters", cfg.MaxTitleLength)
	}

	if utf8.RuneCountInString(description) > cfg.MaxDescriptionLength {
		return NodeContent{}, fmt.Errorf("description exceeds maximum length of %d characters", cfg.MaxDescriptionLength)
	}

	return NodeContent{
		title:       title,
		description: description,
	}, nil
}

// ReconstructNodeContent rebuilds content from stored data without validation
func ReconstructNodeContent(title, description string) NodeContent {
	return NodeContent{title: title, description: description}
}

// Title returns the content title
func (c NodeContent) Title() string {
	return c.title
}

// Description returns the content description
func (c NodeContent) Description() string {
	return c.description
}

// IsEmpty checks if content is empty
func (c NodeContent) IsEmpty() bool {
	return c.title == "" && c.description == ""
}

// Equals checks if two contents are equal
func (c NodeContent) Equals(other NodeContent) bool {
	return c.title == other.title && c.description == other.description
}

// Summary returns a truncated summary of the content
func (c NodeContent) Summary(maxLength int) string {
	if maxLength <= 0 {
		return ""
	}

	combined := c.title
	if c.description != "" {
		combined += ": " + c.description
	}

	if utf8.RuneCountInString(combined) <= maxLength {
		return combined
	}

	runes := []rune(combined)
	return string(runes[:maxLength-3]) + "..."
}
