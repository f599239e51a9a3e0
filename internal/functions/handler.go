// Package functions serves the group operations as named JSON functions
// under POST /functions/v1/{name}, wrapped in the standard response envelope.
package functions

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"

	"github.com/kiumaa/kixikila-sub001/internal/auth"
	"github.com/kiumaa/kixikila-sub001/internal/middleware"
	"github.com/kiumaa/kixikila-sub001/internal/service"
	"github.com/kiumaa/kixikila-sub001/pkg/api/apiconnect"
	"github.com/kiumaa/kixikila-sub001/pkg/response"
)

// maxBodyBytes bounds a function's parameter object.
const maxBodyBytes = 1 << 20

// Handler handles function invocations by delegating to the group service.
type Handler struct {
	groups     apiconnect.GroupServiceHandler
	jwtManager *auth.JWTManager
}

// NewHandler creates a new function handler.
func NewHandler(groups apiconnect.GroupServiceHandler, jwtManager *auth.JWTManager) *Handler {
	return &Handler{groups: groups, jwtManager: jwtManager}
}

// Routes returns the router for function endpoints. Every function requires a bearer token.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequireHTTPAuth(h.jwtManager))

	r.Post("/create-group", invoke(h.groups.CreateGroup, http.StatusCreated))
	r.Post("/get-group", invoke(h.groups.GetGroup, http.StatusOK))
	r.Post("/join-group", invoke(h.groups.JoinGroup, http.StatusOK))
	r.Post("/record-contribution", invoke(h.groups.RecordContribution, http.StatusOK))
	r.Post("/can-draw", invoke(h.groups.CanDraw, http.StatusOK))
	r.Post("/draw-winner", invoke(h.groups.DrawWinner, http.StatusOK))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "function not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "functions are invoked with POST")
	})

	return r
}

// invoke adapts a unary RPC method to a function endpoint. An empty body is
// treated as an empty parameter object.
func invoke[Req, Res any](call func(context.Context, *connect.Request[Req]) (*connect.Response[Res], error), status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params Req
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
			response.BadRequest(w, "Invalid request body")
			return
		}

		resp, err := call(r.Context(), connect.NewRequest(&params))
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, status, resp.Msg)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, reason := service.Classify(err)
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		code = cerr.Code()
		if tagged := service.Reason(err); tagged != "" {
			reason = tagged
		}
	}

	status := httpStatus(code, reason)
	message := errorMessage(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Function failed", "path", r.URL.Path, "error", err)
		if status == http.StatusInternalServerError {
			message = "internal error"
		}
	}
	response.Error(w, status, reason, message)
}

func errorMessage(err error) string {
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		return cerr.Message()
	}
	return err.Error()
}

// httpStatus maps a Connect code to the HTTP status of the function response.
func httpStatus(code connect.Code, reason string) int {
	if reason == "INSUFFICIENT_FUNDS" {
		return http.StatusPaymentRequired
	}
	switch code {
	case connect.CodeInvalidArgument:
		return http.StatusBadRequest
	case connect.CodeUnauthenticated:
		return http.StatusUnauthorized
	case connect.CodePermissionDenied:
		return http.StatusForbidden
	case connect.CodeNotFound:
		return http.StatusNotFound
	case connect.CodeAlreadyExists, connect.CodeResourceExhausted:
		return http.StatusConflict
	case connect.CodeFailedPrecondition:
		return http.StatusUnprocessableEntity
	case connect.CodeUnavailable:
		return http.StatusBadGateway
	case connect.CodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	case connect.CodeCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
