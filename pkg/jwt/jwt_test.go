package jwt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgjwt "github.com/jhoicas/feria-api/pkg/jwt"
)

const (
	testSecret = "test-secret-key-for-unit-tests"
	testUID    = "auth-uid-0001"
	testIssuer = "feria-test"
)

func TestGenerateAndParse_ConservaSubjectYRoles(t *testing.T) {
	tok, err := pkgjwt.Generate(testSecret, testUID, "+60123456789", []string{"seller"}, testIssuer, 60)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	claims, err := pkgjwt.Parse(testSecret, tok)
	require.NoError(t, err)
	assert.Equal(t, testUID, claims.Subject)
	assert.Equal(t, "+60123456789", claims.Phone)
	assert.Equal(t, []string{"seller"}, claims.Roles)
	assert.Equal(t, testIssuer, claims.Issuer)
}

func TestParse_TokenExpirado_RetornaError(t *testing.T) {
	tok, err := pkgjwt.Generate(testSecret, testUID, "", nil, testIssuer, -1)
	require.NoError(t, err)

	_, err = pkgjwt.Parse(testSecret, tok)
	assert.Error(t, err, "token expirado debe retornar error")
}

func TestParse_SecretIncorrecto_RetornaError(t *testing.T) {
	tok, err := pkgjwt.Generate(testSecret, testUID, "", nil, testIssuer, 60)
	require.NoError(t, err)

	_, err = pkgjwt.Parse("otro-secret-completamente-distinto", tok)
	assert.Error(t, err)
}

func TestParse_SinSubject_RetornaError(t *testing.T) {
	tok, err := pkgjwt.Generate(testSecret, "", "", nil, testIssuer, 60)
	require.NoError(t, err)

	_, err = pkgjwt.Parse(testSecret, tok)
	assert.Error(t, err, "un token sin identidad externa no sirve para resolver al usuario")
}

func TestGenerate_SecretVacio(t *testing.T) {
	_, err := pkgjwt.Generate("", testUID, "", nil, testIssuer, 60)
	assert.Error(t, err)
}
