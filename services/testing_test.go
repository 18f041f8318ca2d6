package services

import (
	"context"
	"testing"

	"avtotest/models"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a migrated in-memory sqlite database. A single connection
// keeps every query on the same in-memory database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func newTestAuthService(t *testing.T, db *gorm.DB) *AuthService {
	t.Helper()
	svc := NewAuthService(db, "test-secret")
	svc.hashCost = bcrypt.MinCost
	return svc
}

// createUser stores an account with the given role and returns it with a
// valid token.
func createUser(t *testing.T, svc *AuthService, email string, role models.Role) (*models.User, string) {
	t.Helper()

	user, err := svc.CreateAccount(context.Background(), NewAccount{Email: email, Password: "secret123", FullName: "Test " + string(role)})
	require.NoError(t, err)
	require.NoError(t, svc.AssignRole(context.Background(), user.ID, role))

	token, err := svc.IssueToken(user)
	require.NoError(t, err)
	return user, token
}
