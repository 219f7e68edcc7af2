package api

import (
	"net/http"

	"election-coordinator/service"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

var statusByKind = []struct {
	kind   error
	status int
}{
	{service.ErrInvalidInput, http.StatusBadRequest},
	{service.ErrUnknownVoter, http.StatusNotFound},
	{service.ErrUnknownCandidate, http.StatusNotFound},
	{service.ErrAlreadyVoted, http.StatusConflict},
	{service.ErrLedgerConflict, http.StatusConflict},
	{service.ErrRejected, http.StatusConflict},
	{service.ErrElectionNotOpen, http.StatusForbidden},
	{service.ErrAmbiguousOutcome, http.StatusAccepted},
	{service.ErrMalformedPayload, http.StatusInternalServerError},
	{service.ErrLedgerUnavailable, http.StatusServiceUnavailable},
}

func statusFor(err error) int {
	for _, m := range statusByKind {
		if errors.Is(err, m.kind) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{
		"kind":       service.Kind(err),
		"request_id": service.RequestIDFrom(c.Request.Context()),
	}

	switch {
	case status == http.StatusInternalServerError:
		s.log.WithField("request_id", body["request_id"]).WithError(err).Error("request failed")
		body["error"] = "internal error"
	case errors.Is(err, service.ErrAmbiguousOutcome):
		body["outcome"] = "unknown"
		body["error"] = "the vote may or may not have been recorded; look the voter up before retrying"
	default:
		body["error"] = err.Error()
	}
	c.JSON(status, body)
}

func (s *Server) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"kind":       "invalid_input",
		"error":      "invalid request body: " + err.Error(),
		"request_id": service.RequestIDFrom(c.Request.Context()),
	})
}
