package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shopagent/cartwright/pkg/saga"
)

// statusFor maps a run failure kind onto the HTTP status code.
func statusFor(kind saga.Kind) int {
	switch kind {
	case saga.KindInvalidInput:
		return http.StatusBadRequest
	case saga.KindAdmission:
		return http.StatusPaymentRequired
	case saga.KindNoOffers:
		return http.StatusNotFound
	case saga.KindTokenBudgetBlock:
		return http.StatusTooManyRequests
	case saga.KindStageTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// respondError writes the failure payload. The partial result is
// included when the run got far enough to produce one.
func respondError(c *gin.Context, err error, res *saga.Result) {
	kind := saga.KindOf(err)
	body := gin.H{
		"error":      err.Error(),
		"error_kind": string(kind),
	}
	if step := saga.AdmissionStep(err); step != "" {
		body["admission_step"] = string(step)
	}
	if res != nil {
		body["result"] = res
	}
	c.JSON(statusFor(kind), body)
}
