// Package names resolves a source identity to a stable display name.
package names

// identityPrefixLen is how much of an unnamed identity is shown.
const identityPrefixLen = 8

// Resolver maps participant identities to display names. Resolution is
// pure: the same identity and published name always resolve to the same
// display name, so repeated resolution never reorders the feed.
type Resolver struct {
	localIdentity string
	agentIdentity string
}

// NewResolver creates a resolver for a room. agentIdentity may be empty
// when no non-human participant is configured.
func NewResolver(localIdentity, agentIdentity string) *Resolver {
	return &Resolver{
		localIdentity: localIdentity,
		agentIdentity: agentIdentity,
	}
}

// Resolve returns the display name for an identity. Order: published name,
// "You" for the local participant, "Agent" for the configured agent,
// a short identity prefix, "Unknown" when the identity itself is absent.
func (r *Resolver) Resolve(identity, publishedName string) string {
	if publishedName != "" {
		return publishedName
	}
	if identity == "" {
		return "Unknown"
	}
	if identity == r.localIdentity {
		return "You"
	}
	if r.agentIdentity != "" && identity == r.agentIdentity {
		return "Agent"
	}
	if len(identity) > identityPrefixLen {
		return identity[:identityPrefixLen]
	}
	return identity
}

// IsSelf reports whether identity is the local participant.
func (r *Resolver) IsSelf(identity string) bool {
	return identity != "" && identity == r.localIdentity
}

// LocalIdentity returns the local participant identity.
func (r *Resolver) LocalIdentity() string {
	return r.localIdentity
}
