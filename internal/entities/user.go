package entities

const RoleAdmin = "admin"

type User struct {
	ID    string
	Email string
	Role  string
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
