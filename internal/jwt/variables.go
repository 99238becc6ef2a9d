package jwt

import (
	"agent-widget-platform/internal/env"
)

var RoleSecrets = map[Role]string{}

func init() {
	RoleSecrets[RoleOperator] = env.Get(env.OperatorSecret)
}
