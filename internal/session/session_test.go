package session

import (
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vogiaan1904/barberqueue/pkg/util"
	"golang.org/x/crypto/bcrypt"
)

func TestAdminBus_SubscribeDeliversCurrentValue(t *testing.T) {
	bus := NewAdminBus(true)

	var got []bool
	unsub := bus.Subscribe(func(v bool) { got = append(got, v) })

	bus.Set(false)
	bus.Set(false)
	unsub()
	unsub()
	bus.Set(true)

	assert.Equal(t, []bool{true, false, false}, got)
	assert.True(t, bus.Enabled())
}

func TestAdminBus_ListenerMayUnsubscribeItself(t *testing.T) {
	bus := NewAdminBus(false)

	calls := 0
	var unsub func()
	unsub = bus.Subscribe(func(bool) {
		calls++
		if unsub != nil {
			unsub()
		}
	})

	bus.Set(true)
	bus.Set(false)
	assert.Equal(t, 2, calls)
}

func TestAdminBus_ConcurrentUse(t *testing.T) {
	bus := NewAdminBus(false)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(v bool) {
			defer wg.Done()
			bus.Set(v)
		}(i%2 == 0)
		go func() {
			defer wg.Done()
			unsub := bus.Subscribe(func(bool) {})
			unsub()
		}()
	}
	wg.Wait()

	bus.mu.Lock()
	defer bus.mu.Unlock()
	assert.Empty(t, bus.listeners)
}

func TestAuthenticator(t *testing.T) {
	plain := NewAuthenticator("s3cret", "")
	assert.NoError(t, plain.Check("s3cret"))
	assert.ErrorIs(t, plain.Check("S3cret"), ErrInvalidCredentials)
	assert.ErrorIs(t, plain.Check(""), ErrInvalidCredentials)

	empty := NewAuthenticator("", "")
	assert.ErrorIs(t, empty.Check(""), ErrInvalidCredentials)

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	hashed := NewAuthenticator("ignored", string(hash))
	assert.NoError(t, hashed.Check("hunter2"))
	assert.ErrorIs(t, hashed.Check("ignored"), ErrInvalidCredentials)
}

func TestTokenIssuer(t *testing.T) {
	clock := &util.FixedClock{T: time.Now()}
	issuer := NewTokenIssuer("secret", time.Hour, clock)

	token, exp, err := issuer.Issue()
	require.NoError(t, err)
	assert.Equal(t, clock.T.Add(time.Hour).Unix(), exp.Unix())

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, claims.Role)

	other := NewTokenIssuer("other", time.Hour, clock)
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	clock.Advance(2 * time.Hour)
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_RejectsOtherRoles(t *testing.T) {
	clock := &util.FixedClock{T: time.Now()}
	issuer := NewTokenIssuer("secret", time.Hour, clock)

	claims := AdminClaims{
		Role: "customer",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(clock.T.Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = issuer.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
