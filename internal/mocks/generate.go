// Package mocks provides mock implementations for testing the relay.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our delivery and
// metrics interfaces.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	publisher := mocks.NewMockPublisher(ctrl)
//	publisher.EXPECT().Publish(gomock.Any(), notify.PublicPost(), gomock.Any()).Return(notify.Receipt{Status: 200}, nil)
package mocks

// Generate mock for Publisher interface from internal/notify package.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=publisher_mock.go github.com/target/txalert/internal/notify Publisher

// Generate mock for Sink interface from internal/observability/statsd package.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=sink_mock.go github.com/target/txalert/internal/observability/statsd Sink
