package utils

import (
	"os"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// InitSentry initializes Sentry for error tracking. With no DSN configured
// the SDK runs in no-op mode, which is what local development wants.
func InitSentry() {
	dsn := os.Getenv("SENTRY_DSN")

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      os.Getenv("SENTRY_ENVIRONMENT"),
		EnableTracing:    true,
		TracesSampleRate: 0.2,
	})
	if err != nil {
		logrus.Fatalf("sentry.Init: %s", err)
	}

	if dsn == "" {
		logrus.Info("Sentry initialized without DSN (events disabled)")
		return
	}
	logrus.Info("Sentry initialized")
}
