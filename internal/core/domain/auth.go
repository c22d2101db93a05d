package domain

// AuthResult reports the outcome of Authenticate.
type AuthResult struct {
	Success bool `json:"success"`
	// UserID and UserName identify the authenticated vendor account.
	UserID   string `json:"user_id,omitempty"`
	UserName string `json:"user_name,omitempty"`
	// AuthURL carries the authorization URL when the call failed because no
	// code or token was supplied; the caller sends the user there.
	AuthURL string `json:"auth_url,omitempty"`
	// Error carries a human-readable remediation hint on failure.
	Error string `json:"error,omitempty"`
}

// TestResult reports the outcome of TestConnection. Safe to produce
// repeatedly; carries no mutable state.
type TestResult struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
