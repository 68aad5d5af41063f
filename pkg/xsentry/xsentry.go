package xsentry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/enfty-lab/gateway/config"
	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
)

const FlushTimeout = 2 * time.Second

// Init configures the global hub. Reporting is disabled when no DSN is configured.
func Init(cfg config.SentryConfigs, release string) error {
	if cfg.DSN == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Release:     release,
		Environment: cfg.Environment,
	})
}

func Flush() {
	sentry.Flush(FlushTimeout)
}

// HTTPHandler reports panics of handler. Panics are re-raised after being reported.
func HTTPHandler(handler http.Handler) http.Handler {
	addTags := func(handler http.Handler) http.HandlerFunc {
		return func(rw http.ResponseWriter, r *http.Request) {
			if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
				hub.Scope().SetTag("area", "http")
			}
			handler.ServeHTTP(rw, r)
		}
	}

	return sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle(addTags(handler))
}

// CaptureException reports err with tags on a hub cloned from the global one.
func CaptureException(err error, tags map[string]string) {
	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
	})
	hub.CaptureException(err)
}

// RecoverError converts a recovered panic value to an error and reports it.
func RecoverError(v any, tags map[string]string) error {
	err, ok := v.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", v)
	}

	CaptureException(err, tags)
	return err
}
