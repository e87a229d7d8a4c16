package store

// ProfileState tracks how far profile onboarding has progressed for a
// session context. Transitions are driven by facts supplied by the
// profile collaborators, never inferred inside the orchestrator.
type ProfileState string

const (
	ProfileStateNone        ProfileState = "NO_PROFILE"
	ProfileStateRequested   ProfileState = "PROFILE_REQUESTED"
	ProfileStateRead        ProfileState = "PROFILE_READ"
	ProfileStateGithub      ProfileState = "GITHUB_PENDING"
	ProfileStateSynthesized ProfileState = "PROFILE_SYNTHESIZED"
)

// Session represents the active conversation state kept in memory between
// turns. Identity is client-supplied and treated as an opaque correlation
// key; creation with a known id is idempotent.
type Session struct {
	ID              string `json:"id"`
	UserID          string `json:"user_id"`
	ModelIdentifier string `json:"model_identifier"`

	ProfileState ProfileState `json:"profile_state"`

	// SeedProfilePath is remembered after a read_file call so later
	// synthesis turns can refer back to the seed document.
	SeedProfilePath string `json:"seed_profile_path"`

	// LastQuery is kept for diagnostics only.
	LastQuery string `json:"last_query"`
}

// NewSession returns a fresh session in the NO_PROFILE state.
func NewSession(id, userID, modelIdentifier string) *Session {
	return &Session{
		ID:              id,
		UserID:          userID,
		ModelIdentifier: modelIdentifier,
		ProfileState:    ProfileStateNone,
	}
}
