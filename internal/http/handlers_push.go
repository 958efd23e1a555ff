package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/target/txalert/internal/errors"
	"github.com/target/txalert/internal/service/relay"
)

// InvocationHandler is the relay entry point the push handler drives.
type InvocationHandler interface {
	Handle(ctx context.Context, inv relay.Invocation) (relay.Result, error)
}

// pushEnvelope is the body Pub/Sub POSTs to push subscriptions.
type pushEnvelope struct {
	Message struct {
		Data        string            `json:"data"`
		MessageID   string            `json:"messageId"`
		Attributes  map[string]string `json:"attributes"`
		PublishTime string            `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// PushHandler turns one Pub/Sub push delivery into one relay invocation.
type PushHandler struct {
	Relay        InvocationHandler
	MaxBodyBytes int64
	Logger       *slog.Logger
}

func (h *PushHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBodyBytes)

	var env pushEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		code := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			code = http.StatusRequestEntityTooLarge
		}
		WriteError(w, ErrorParams{Code: code, ErrCode: "invalid_envelope", Err: err})
		return
	}

	attrs := []any{
		"message_id", env.Message.MessageID,
		"subscription", env.Subscription,
	}
	if principal, ok := PrincipalFromContext(r.Context()); ok {
		attrs = append(attrs, "principal", principal)
	}
	h.Logger.DebugContext(r.Context(), "push received", attrs...)

	res, err := h.Relay.Handle(r.Context(), relay.Invocation{
		ID:   env.Message.MessageID,
		Data: env.Message.Data,
	})
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    StatusForError(err),
			ErrCode: errorCode(err),
			Err:     err,
		})
		return
	}

	w.Header().Set("X-Relay-Outcome", string(res.Outcome))
	w.WriteHeader(http.StatusNoContent)
}

// StatusForError maps a relay failure to the HTTP status returned to Pub/Sub.
// Any non-2xx status makes Pub/Sub redeliver.
func StatusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusNoContent
	case apperrors.IsDecode(err):
		return http.StatusBadRequest
	case apperrors.IsConfiguration(err):
		return http.StatusInternalServerError
	case apperrors.IsTimeout(err):
		return http.StatusGatewayTimeout
	case apperrors.IsCanceled(err):
		return http.StatusServiceUnavailable
	case apperrors.IsDelivery(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	if code := apperrors.GetCode(err); code != "" {
		return string(code)
	}
	return string(apperrors.ErrCodeInternal)
}
