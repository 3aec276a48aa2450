package controllers

import (
	"net/http"

	"github.com/shreesanatan/pujapath-backend/api/responses"
	"github.com/shreesanatan/pujapath-backend/api/validators"
	"github.com/shreesanatan/pujapath-backend/internal/otp"
	pkgerrors "github.com/shreesanatan/pujapath-backend/pkg/errors"
	"github.com/shreesanatan/pujapath-backend/pkg/logger"
)

// AuthRequestOTP wires the OTP send endpoint into the HTTP layer.
func AuthRequestOTP(svc otp.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "otp service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body otp.RequestOTPRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Request(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// AuthVerifyOTP checks the submitted code and signs the caller in.
func AuthVerifyOTP(svc otp.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "otp service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body otp.VerifyOTPRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Verify(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusOK
		if result.IsNewUser {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}
