// Package httpapi serves the console's JSON API over chi for both the admin console
// and the H5 client. Every route is mounted twice: under /api and under /api/h5.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	identityservice "github.com/hugo617/healthcare-admin-sub001/internal/identity/service"
	"github.com/hugo617/healthcare-admin-sub001/internal/platform/rbac"
	"github.com/hugo617/healthcare-admin-sub001/internal/tenant"
)

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("http: encode response failed", zap.Error(err))
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeError maps a domain error to a status code. Unknown errors are logged and reported as 500
// without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("http: request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeMessage(w, status, msg)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, identityservice.ErrInvalidCredentials):
		return http.StatusUnauthorized, identityservice.ErrInvalidCredentials.Error()
	case errors.Is(err, rbac.ErrUnauthorized):
		return http.StatusUnauthorized, rbac.ErrUnauthorized.Error()
	case errors.Is(err, rbac.ErrForbidden):
		return http.StatusForbidden, rbac.ErrForbidden.Error()
	case errors.Is(err, tenant.ErrTenantRequired):
		return http.StatusBadRequest, tenant.ErrTenantRequired.Error()
	case errors.Is(err, tenant.ErrTenantNotFound):
		return http.StatusNotFound, tenant.ErrTenantNotFound.Error()
	case errors.Is(err, tenant.ErrTenantInactive):
		return http.StatusForbidden, tenant.ErrTenantInactive.Error()
	}
	return http.StatusInternalServerError, "internal error"
}

// decodeJSON decodes an optional JSON body into v. An empty body leaves v unchanged.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

const maxBodyBytes = 1 << 20
