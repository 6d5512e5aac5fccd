package auth

// Scopes understood by the health API.
const (
	ScopeHealthRead  = "health:read"
	ScopeHealthWrite = "health:write"
)
