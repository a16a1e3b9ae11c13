package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"consultancy_auth/internal/api"
	"consultancy_auth/internal/credential"
	"consultancy_auth/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const remoteSecret = "remote-secret"

func newRemoteStore(t *testing.T) (*Store, *Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := credential.NewService(credential.NewMemoryRepository(bcrypt.MinCost), utils.Signer{Secret: remoteSecret}, nil)
	srv := httptest.NewServer(api.NewRouter(api.Deps{Service: svc, JWTSecret: remoteSecret}))
	t.Cleanup(srv.Close)

	p := NewMemoryPartition()
	open := func() *Store {
		logger, _ := test.NewNullLogger()
		s, err := New(context.Background(), Options{
			Storage:       p.Open(),
			Authenticator: NewRemoteAuthenticator(srv.URL + "/api/auth/"),
			Logger:        logger,
		})
		require.NoError(t, err)
		t.Cleanup(s.Close)
		return s
	}
	return open(), open()
}

func TestRemoteModeSkipsSeeding(t *testing.T) {
	s, _ := newRemoteStore(t)
	assert.Empty(t, s.RegisteredUsers())
}

func TestRemoteRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	s, other := newRemoteStore(t)

	res, err := s.Register(ctx, janeDoe())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "jane@x.com", res.Email)
	assert.False(t, s.IsAuthenticated())

	_, err = s.Register(ctx, janeDoe())
	assert.ErrorIs(t, err, ErrEmailRegistered)

	user, err := s.Login(ctx, "JANE@x.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", user.FullName)
	assert.Equal(t, "student", user.Role)

	claims, err := utils.ParseJWT(s.Token(), remoteSecret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	require.Eventually(t, other.IsAuthenticated, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, user.ID, other.User().ID)
}

func TestRemoteLoginFailures(t *testing.T) {
	ctx := context.Background()
	s, _ := newRemoteStore(t)
	_, err := s.Register(ctx, janeDoe())
	require.NoError(t, err)

	for _, tc := range []struct{ identifier, password string }{
		{"jane@x.com", "wrong"},
		{"ghost@x.com", "secret"},
		{"janedoe", "secret"},
	} {
		_, err := s.Login(ctx, tc.identifier, tc.password)
		assert.ErrorIs(t, err, ErrInvalidLogin, tc.identifier)
	}
	assert.False(t, s.IsAuthenticated())
}

func TestRemoteRegisterValidation(t *testing.T) {
	s, _ := newRemoteStore(t)

	req := janeDoe()
	req.Email = "not-an-email"
	req.Password = "123"
	_, err := s.Register(context.Background(), req)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	fields := map[string]string{}
	for _, f := range verr.Fields {
		fields[f.Field] = f.Msg
	}
	assert.Equal(t, "Please include a valid email", fields["email"])
	assert.Equal(t, "Please enter a password with 6 or more characters", fields["password"])
}

func TestRemoteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Server error"}`))
	}))
	defer srv.Close()

	a := NewRemoteAuthenticator(srv.URL)
	_, _, err := a.Login(context.Background(), "jane@x.com", "secret")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidLogin)
	assert.Contains(t, err.Error(), "500")

	err = a.Register(context.Background(), janeDoe())
	assert.Contains(t, err.Error(), "Server error")
}
