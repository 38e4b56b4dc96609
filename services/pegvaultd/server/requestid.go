package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	headerRequestID                = "X-Request-ID"
	contextKeyRequestID contextKey = "pegvaultd.request_id"
	maxInboundRequestID            = 128
)

// requestID propagates a caller supplied X-Request-ID or assigns a fresh
// UUID, echoing it on the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerRequestID))
		if id == "" || len(id) > maxInboundRequestID {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		ctx := context.WithValue(r.Context(), contextKeyRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFrom returns the request id assigned by the middleware.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}
