package testutils

import (
	"context"

	"github.com/maplecart/maplecart/services/identity"
	"github.com/stretchr/testify/mock"
)

type MockIdentityClient struct {
	mock.Mock
}

func (m *MockIdentityClient) SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Session), args.Error(1)
}

func (m *MockIdentityClient) SignUp(ctx context.Context, email, password string) (*identity.Session, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Session), args.Error(1)
}

func (m *MockIdentityClient) VerifyOTP(ctx context.Context, email, code, purpose string) (*identity.Session, error) {
	args := m.Called(ctx, email, code, purpose)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Session), args.Error(1)
}

func (m *MockIdentityClient) SendOTP(ctx context.Context, email string, shouldCreateUser bool) error {
	args := m.Called(ctx, email, shouldCreateUser)
	return args.Error(0)
}

func (m *MockIdentityClient) RefreshSession(ctx context.Context, refreshToken string) (*identity.Session, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Session), args.Error(1)
}

func (m *MockIdentityClient) ExchangeCode(ctx context.Context, authCode, codeVerifier string) (*identity.Session, error) {
	args := m.Called(ctx, authCode, codeVerifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Session), args.Error(1)
}

func (m *MockIdentityClient) AuthorizeURL(provider, redirectTo, codeChallenge string) string {
	args := m.Called(provider, redirectTo, codeChallenge)
	return args.String(0)
}

func (m *MockIdentityClient) AdminCreateUser(ctx context.Context, email, password string, confirmEmail bool) (*identity.User, error) {
	args := m.Called(ctx, email, password, confirmEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockIdentityClient) AdminUpdatePassword(ctx context.Context, userID, newPassword string) error {
	args := m.Called(ctx, userID, newPassword)
	return args.Error(0)
}

func (m *MockIdentityClient) AdminGetUserByEmail(ctx context.Context, email string) (*identity.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

type MockMailSender struct {
	mock.Mock
}

func (m *MockMailSender) SendPasswordReset(to, resetLink string) error {
	args := m.Called(to, resetLink)
	return args.Error(0)
}

type MockCaptchaVerifier struct {
	mock.Mock
}

func (m *MockCaptchaVerifier) Verify(ctx context.Context, token, ip string) error {
	args := m.Called(ctx, token, ip)
	return args.Error(0)
}
