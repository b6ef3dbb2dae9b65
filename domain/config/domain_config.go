package config

// DeletePolicy controls what deleting a non-empty folder does
type DeletePolicy string

const (
	// DeletePolicyReject refuses to delete a folder that still has children
	DeletePolicyReject DeletePolicy = "reject"

	// DeletePolicyCascade deletes the folder's descendant closure bottom-up
	DeletePolicyCascade DeletePolicy = "cascade"
)

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	// Tree constraints
	MaxTreeDepth        int // hard bound on any ancestor/descendant walk
	MaxDescendantNodes  int // hard bound on descendant closure size during walks
	MaxChildrenPerQuery int

	// Node constraints
	MaxTitleLength       int
	MaxDescriptionLength int

	// Structural policy
	DeletePolicy DeletePolicy
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		// The depth cap bounds traversal even when the stored tree is
		// already cyclic; it is a corruption guard, not a product limit.
		MaxTreeDepth:       64,
		MaxDescendantNodes: 10000,

		MaxChildrenPerQuery: 1000,

		MaxTitleLength:       200,
		MaxDescriptionLength: 2000,

		DeletePolicy: DeletePolicyReject,
	}
}

// WithDeletePolicy returns a copy of the config with the given delete policy
func (c *DomainConfig) WithDeletePolicy(policy DeletePolicy) *DomainConfig {
	copied := *c
	copied.DeletePolicy = policy
	return &copied
}
