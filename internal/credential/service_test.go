package credential

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"consultancy_auth/internal/domain"
	"consultancy_auth/internal/events"
	"consultancy_auth/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// failingRepository fails every email lookup
type failingRepository struct {
	*MemoryRepository
	err error
}

func (r failingRepository) FindByEmail(context.Context, string) (*domain.User, error) {
	return nil, r.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.AuthEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.AuthEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

const testSecret = "test-secret-key"

func newTestService(t *testing.T) (*Service, *MemoryRepository, *recordingPublisher) {
	t.Helper()
	repo := NewMemoryRepository(bcrypt.MinCost)
	pub := &recordingPublisher{}
	return NewService(repo, utils.Signer{Secret: testSecret, TTL: utils.DefaultTokenTTL}, pub), repo, pub
}

func TestService_Register(t *testing.T) {
	svc, repo, pub := newTestService(t)
	ctx := context.Background()

	t.Run("successful registration", func(t *testing.T) {
		res, err := svc.Register(ctx, RegisterInput{Name: "Jane Doe", Email: "Jane@X.com", Password: "secret", Role: "consultant"})
		require.NoError(t, err)

		assert.NotEmpty(t, res.Token)
		assert.NotEmpty(t, res.User.ID)
		assert.Equal(t, "Jane Doe", res.User.Name)
		assert.Equal(t, "jane@x.com", res.User.Email)
		assert.Equal(t, "consultant", res.User.Role)

		claims, err := utils.ParseJWT(res.Token, testSecret)
		require.NoError(t, err)
		assert.Equal(t, res.User.ID, claims.UserID)
		assert.Equal(t, "jane@x.com", claims.Email)
		assert.Equal(t, "consultant", claims.Role)
		assert.Equal(t, 24*time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt.Time))

		stored, err := repo.FindByEmail(ctx, "jane@x.com")
		require.NoError(t, err)
		assert.NotEqual(t, "secret", stored.Password, "password must be stored hashed")

		require.Len(t, pub.events, 1)
		assert.Equal(t, events.UserRegistered, pub.events[0].Type)
	})

	t.Run("duplicate email creates nothing", func(t *testing.T) {
		before := repo.Len()
		_, err := svc.Register(ctx, RegisterInput{Name: "Other", Email: "jane@x.com", Password: "secret2"})
		assert.ErrorIs(t, err, ErrUserExists)
		assert.Equal(t, "User already exists", err.Error())
		assert.Equal(t, before, repo.Len())
	})

	t.Run("default role", func(t *testing.T) {
		res, err := svc.Register(ctx, RegisterInput{Name: "Sam", Email: "sam@x.com", Password: "secret"})
		require.NoError(t, err)
		assert.Equal(t, domain.RoleStudent, res.User.Role)
	})

	t.Run("lookup failure", func(t *testing.T) {
		broken := NewService(failingRepository{MemoryRepository: repo, err: errors.New("db down")}, utils.Signer{Secret: testSecret}, nil)
		_, err := broken.Register(ctx, RegisterInput{Name: "X", Email: "x@x.com", Password: "secret"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUserExists)
		_, err = broken.Login(ctx, "x@x.com", "secret")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestService_Login(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Name: "Login Test", Email: "login@example.com", Password: "Password1"})
	require.NoError(t, err)

	t.Run("correct password", func(t *testing.T) {
		res, err := svc.Login(ctx, "login@example.com", "Password1")
		require.NoError(t, err)
		assert.NotEmpty(t, res.Token)
		assert.Equal(t, "login@example.com", res.User.Email)
		assert.Equal(t, events.UserLoggedIn, pub.events[len(pub.events)-1].Type)
	})

	t.Run("email is matched case-insensitively", func(t *testing.T) {
		_, err := svc.Login(ctx, "LOGIN@example.com", "Password1")
		assert.NoError(t, err)
	})

	t.Run("unknown user and wrong password are indistinguishable", func(t *testing.T) {
		_, errMissing := svc.Login(ctx, "nobody@example.com", "Password1")
		_, errWrong := svc.Login(ctx, "login@example.com", "wrong")
		require.ErrorIs(t, errMissing, ErrInvalidCredentials)
		require.ErrorIs(t, errWrong, ErrInvalidCredentials)
		assert.Equal(t, errMissing.Error(), errWrong.Error())
	})
}

func TestService_PublishFailureDoesNotFailRequest(t *testing.T) {
	repo := NewMemoryRepository(bcrypt.MinCost)
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewService(repo, utils.Signer{Secret: testSecret}, pub)

	_, err := svc.Register(context.Background(), RegisterInput{Name: "A", Email: "a@x.com", Password: "secret"})
	assert.NoError(t, err)
}

func TestService_SigningFailure(t *testing.T) {
	svc := NewService(NewMemoryRepository(bcrypt.MinCost), utils.Signer{}, nil)
	_, err := svc.Register(context.Background(), RegisterInput{Name: "A", Email: "a@x.com", Password: "secret"})
	assert.ErrorIs(t, err, utils.ErrMissingSecret)
}

func TestService_ProfileAndRoles(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, RegisterInput{Name: "Admin", Email: "boss@x.com", Password: "secret", Role: domain.RoleAdmin})
	require.NoError(t, err)

	p, err := svc.Profile(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, res.User, p)

	ok, err := svc.HasRole(ctx, res.User.ID, domain.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.Profile(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_ListUsers(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	for _, e := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		_, err := svc.Register(ctx, RegisterInput{Name: e, Email: e, Password: "secret"})
		require.NoError(t, err)
	}

	page, err := svc.ListUsers(ctx, 1, 2)
	require.NoError(t, err)
	assert.Len(t, page.Users, 2)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)

	page, err = svc.ListUsers(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page.Users, 1)
}

func TestService_ListUsersPageOutOfRange(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for _, tc := range []struct{ page, size int }{
		{0, 20},
		{1, 0},
		{math.MaxInt, 20},
		{math.MaxInt/20 + 2, 20},
	} {
		_, err := svc.ListUsers(ctx, tc.page, tc.size)
		assert.ErrorIs(t, err, ErrPageOutOfRange, "page=%d size=%d", tc.page, tc.size)
	}

	page, err := svc.ListUsers(ctx, math.MaxInt/20+1, 20)
	require.NoError(t, err)
	assert.Empty(t, page.Users)
}

func TestMemoryRepository_ListRejectsNegativeOffset(t *testing.T) {
	repo := NewMemoryRepository(bcrypt.MinCost)
	_, _, err := repo.List(context.Background(), -20, 20)
	assert.ErrorIs(t, err, ErrPageOutOfRange)
}
