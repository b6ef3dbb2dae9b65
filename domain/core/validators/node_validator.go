package validators

import (
	"strings"
	"unicode/utf8"

	"cardtree-backend/domain/config"
	"cardtree-backend/domain/core/entities"
	"cardtree-backend/pkg/errors"
)

// NodeValidator validates node-related domain rules beyond what the value
// objects enforce on construction
type NodeValidator struct {
	cfg *config.DomainConfig
}

// NewNodeValidator creates a validator with default rules
func NewNodeValidator() *NodeValidator {
	return NewNodeValidatorWithConfig(config.DefaultDomainConfig())
}

// NewNodeValidatorWithConfig creates a validator with the given rules
func NewNodeValidatorWithConfig(cfg *config.DomainConfig) *NodeValidator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &NodeValidator{cfg: cfg}
}

// ValidateKind checks the discriminator
func (v *NodeValidator) ValidateKind(kind string) error {
	if !entities.NodeKind(kind).IsValid() {
		return errors.NewValidationError("kind must be 'folder' or 'card'").
			WithDetail("kind", kind)
	}
	return nil
}

// ValidateTitle checks title presence and length
func (v *NodeValidator) ValidateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.NewValidationError("title is required")
	}
	if length := utf8.RuneCountInString(title); length > v.cfg.MaxTitleLength {
		return errors.NewValidationError("title too long").
			WithDetail("actual_length", length).
			WithDetail("max_length", v.cfg.MaxTitleLength)
	}
	return nil
}

// ValidateDescription checks description length
func (v *NodeValidator) ValidateDescription(description string) error {
	if length := utf8.RuneCountInString(description); length > v.cfg.MaxDescriptionLength {
		return errors.NewValidationError("description too long").
			WithDetail("actual_length", length).
			WithDetail("max_length", v.cfg.MaxDescriptionLength)
	}
	return nil
}

// ValidateParentable checks that a node can accept children
func (v *NodeValidator) ValidateParentable(parent *entities.Node) error {
	if parent == nil {
		return errors.NewNotFoundError("parent folder")
	}
	if !parent.IsFolder() {
		return errors.NewInvalidKindError("cannot create or move nodes under a card").
			WithDetail("parent_id", parent.ID().String()).
			WithDetail("parent_kind", string(parent.Kind()))
	}
	return nil
}
