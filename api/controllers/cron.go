package controllers

import (
	"crypto/subtle"
	"net/http"

	"github.com/kamishop/kamishop-backend/api/responses"
	"github.com/kamishop/kamishop-backend/internal/cron"
	pkgerrors "github.com/kamishop/kamishop-backend/pkg/errors"
	"github.com/kamishop/kamishop-backend/pkg/logger"
)

const cronSecretHeader = "X-Cron-Secret"

// TriggerCronJob runs a registered job on demand. Hosted schedulers hit this
// with the shared secret; with no secret configured the endpoint refuses every
// request rather than running open.
func TriggerCronJob(job cron.Job, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if job == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "job unavailable"))
			return
		}

		provided := r.Header.Get(cronSecretHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid cron secret"))
			return
		}

		if logg != nil {
			ctx = logg.WithField(ctx, "job", job.Name())
			logg.Info(ctx, "manual cron trigger")
		}

		if err := job.Run(ctx); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "job failed"))
			return
		}

		responses.WriteSuccess(w, map[string]string{"job": job.Name(), "status": "completed"})
	}
}
