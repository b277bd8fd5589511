package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	pair, err := Issue("acct-1", RoleFaculty, "campusconnect", "secret", time.Minute, time.Hour)
	require.NoError(t, err)

	claims, err := Parse(pair.AccessToken, "secret", "campusconnect")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", claims.Subject)
	assert.Equal(t, RoleFaculty, claims.Role)
}

func TestParseRejectsWrongKey(t *testing.T) {
	pair, err := Issue("acct-1", RoleStudent, "campusconnect", "secret", time.Minute, time.Hour)
	require.NoError(t, err)

	_, err = Parse(pair.AccessToken, "other-secret", "campusconnect")
	assert.Error(t, err)
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	pair, err := Issue("acct-1", RoleStudent, "someone-else", "secret", time.Minute, time.Hour)
	require.NoError(t, err)

	_, err = Parse(pair.AccessToken, "secret", "campusconnect")
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	pair, err := Issue("acct-1", RoleStudent, "campusconnect", "secret", -time.Minute, time.Hour)
	require.NoError(t, err)

	_, err = Parse(pair.AccessToken, "secret", "campusconnect")
	assert.Error(t, err)
}

func TestCanApprove(t *testing.T) {
	assert.True(t, Context{Role: RoleAdmin}.CanApprove())
	assert.True(t, Context{Role: RoleFaculty}.CanApprove())
	assert.False(t, Context{Role: RoleStudent}.CanApprove())
}
