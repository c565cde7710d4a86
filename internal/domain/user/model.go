package user

import (
	"context"

	"github.com/sitequote/billing/internal/types"
)

// User is the owner of a subscription. Read-only from this service.
type User struct {
	ID    string `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
	Phone string `db:"phone" json:"phone,omitempty"`
	Role  string `db:"role" json:"role"`
	types.BaseModel
}

func NewUser(ctx context.Context, name, email string) *User {
	return &User{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_USER),
		Name:      name,
		Email:     email,
		Role:      "customer",
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
}
