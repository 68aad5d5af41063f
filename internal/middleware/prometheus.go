package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/enfty-lab/gateway/internal/common"
	"github.com/enfty-lab/gateway/pkg/errorx"
	"github.com/enfty-lab/gateway/pkg/router"
	"github.com/enfty-lab/gateway/pkg/xcontext"
)

func WithStartTime() router.MiddlewareFunc {
	return func(ctx context.Context) (context.Context, error) {
		return xcontext.WithStartTime(ctx, time.Now()), nil
	}
}

// Prometheus records the path and the response status of every request.
func Prometheus() router.CloserFunc {
	return func(ctx context.Context) {
		status := http.StatusOK
		if err := xcontext.Error(ctx); err != nil {
			errx := errorx.Unknown
			errors.As(err, &errx)
			status = errx.Code.HTTPStatus()
		}

		path := xcontext.HTTPRequest(ctx).URL.Path
		code := strconv.Itoa(status)

		common.PromCounters[common.HTTPRequestTotal].WithLabelValues(path, code).Inc()

		startTime := xcontext.StartTime(ctx)
		if !startTime.IsZero() {
			common.PromHistograms[common.HTTPRequestDurationSeconds].
				WithLabelValues(path, code).Observe(time.Since(startTime).Seconds())
		}
	}
}
