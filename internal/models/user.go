package models

type UserRole string

// App-level roles carried in the Supabase app_metadata.role claim.
const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)
