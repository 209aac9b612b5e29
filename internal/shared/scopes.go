package shared

// Platform permissions used by the application itself, as opposed to the
// school-domain permissions managed through the API.
const (
	PermUsersView = "users.view"
)
