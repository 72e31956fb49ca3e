// Package seed holds the bootstrap data shared by the server and the
// seed command. The same values double as reseed defaults for the
// corruption repair on the global collections.
package seed

import (
	"os"

	"github.com/google/uuid"
	"github.com/tabletrack/api/internal/enum"
	"github.com/tabletrack/api/internal/model"
	"golang.org/x/crypto/bcrypt"
)

const defaultBranchID = "main"

func Branches() []model.Branch {
	return []model.Branch{
		{ID: defaultBranchID, Name: "Main Branch"},
	}
}

// Users builds the bootstrap owner account. The password comes from
// DEFAULT_ADMIN_PASSWORD and falls back to a dev-only default.
func Users() ([]model.User, error) {
	password := os.Getenv("DEFAULT_ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return []model.User{
		{
			ID:           uuid.New().String(),
			Username:     "admin",
			PasswordHash: string(hash),
			Name:         "Administrator",
			Role:         enum.UserRoleOwner,
			BranchID:     defaultBranchID,
		},
	}, nil
}

// Tables lays out a small default floor plan for a fresh branch.
func Tables() []model.Table {
	tables := make([]model.Table, 0, 8)
	names := []string{"T1", "T2", "T3", "T4", "T5", "T6", "T7", "T8"}
	for _, name := range names {
		tables = append(tables, model.Table{
			ID:    uuid.New().String(),
			Name:  name,
			Floor: "1",
		})
	}
	return tables
}
