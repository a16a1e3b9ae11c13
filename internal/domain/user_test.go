package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func testTx() *gorm.DB {
	tx := &gorm.DB{Config: &gorm.Config{}, Statement: &gorm.Statement{}}
	tx.Statement.DB = tx
	return tx.Set(BcryptCostSetting, bcrypt.MinCost)
}

func TestUser_BeforeCreateAssignsIDAndRole(t *testing.T) {
	u := &User{Name: "Jane"}
	require.NoError(t, u.BeforeCreate(testTx()))

	assert.Len(t, u.ID, 36)
	assert.Equal(t, RoleStudent, u.Role)

	keep := &User{ID: "fixed", Role: RoleAdmin}
	require.NoError(t, keep.BeforeCreate(testTx()))
	assert.Equal(t, "fixed", keep.ID)
	assert.Equal(t, RoleAdmin, keep.Role)
}

func TestUser_BeforeSaveHashesOnce(t *testing.T) {
	u := &User{Email: "  Jane@X.com ", Password: "secret"}
	require.NoError(t, u.BeforeSave(testTx()))

	assert.Equal(t, "jane@x.com", u.Email)
	assert.NotEqual(t, "secret", u.Password)
	assert.True(t, u.CheckPassword("secret"))
	assert.False(t, u.CheckPassword("wrong"))

	hashed := u.Password
	require.NoError(t, u.BeforeSave(testTx()))
	assert.Equal(t, hashed, u.Password, "an existing hash must not be re-hashed")
}

func TestUser_Public(t *testing.T) {
	u := &User{ID: "1", Name: "Jane", Email: "jane@x.com", Password: "hash", Role: RoleStudent}
	assert.Equal(t, PublicUser{ID: "1", Name: "Jane", Email: "jane@x.com", Role: RoleStudent}, u.Public())
}
