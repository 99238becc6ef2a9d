package jwt

type Role int

const (
	RoleOperator Role = iota
)

type Operator struct {
	Id    string `json:"id"`
	Email string `json:"email"`
}
