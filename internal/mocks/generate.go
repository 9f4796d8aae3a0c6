// Package mocks provides gomock implementations of the auth ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	resolver := mocks.NewMockIdentityResolver(ctrl)
//	resolver.EXPECT().Resolve(gomock.Any(), "token").Return(identity, nil)
package mocks

// Generate mocks for the auth ports: AuthProvider, Authenticator, IdentityCache and IdentityResolver.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=auth_ports_mock.go github.com/target/mmk-ui-web/internal/ports AuthProvider,Authenticator,IdentityCache,IdentityResolver
