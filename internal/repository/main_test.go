package repository

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"rescueboard/internal/db"
	"rescueboard/internal/model"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := db.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	return gormDB
}

func createUser(t *testing.T, gormDB *gorm.DB, name, email string, role model.Role) *model.User {
	t.Helper()
	user := &model.User{Name: name, Email: email, PasswordHash: "hash", Role: role}
	require.NoError(t, gormDB.Create(user).Error)
	return user
}
