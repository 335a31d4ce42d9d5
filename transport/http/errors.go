package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/empower-grid/gridauth"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// statusFor maps wire codes to HTTP status. Login-path failures are all 401:
// distinguishing "bad signature" from "unknown nonce" by status would leak
// probe feedback for free.
func statusFor(code string) int {
	switch code {
	case "INVALID_SIGNATURE", "EXPIRED_CHALLENGE", "CHALLENGE_NOT_FOUND",
		"MESSAGE_NONCE_MISMATCH", "TOKEN_EXPIRED", "TOKEN_REVOKED", "UNAUTHORIZED":
		return http.StatusUnauthorized
	case "CHALLENGE_ALREADY_USED":
		return http.StatusConflict
	case "RATE_LIMIT_EXCEEDED":
		return http.StatusTooManyRequests
	case "REGISTRATION_FAILED":
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	code := gridauth.Code(err)
	c.AbortWithStatusJSON(statusFor(code), errorResponse{
		Error: errorBody{
			Code:    code,
			Message: publicMessage(code),
		},
	})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
		Error: errorBody{
			Code:    "UNKNOWN_ERROR",
			Message: message,
		},
	})
}

// publicMessage keeps response text stable and free of internal detail.
func publicMessage(code string) string {
	switch code {
	case "INVALID_SIGNATURE":
		return "signature verification failed"
	case "EXPIRED_CHALLENGE":
		return "challenge expired"
	case "CHALLENGE_NOT_FOUND":
		return "challenge not found"
	case "CHALLENGE_ALREADY_USED":
		return "challenge already used"
	case "MESSAGE_NONCE_MISMATCH":
		return "signed message does not match challenge"
	case "REGISTRATION_FAILED":
		return "registration failed"
	case "TOKEN_EXPIRED":
		return "token expired"
	case "TOKEN_REVOKED":
		return "token revoked"
	case "RATE_LIMIT_EXCEEDED":
		return "rate limit exceeded"
	case "UNAUTHORIZED":
		return "unauthorized"
	default:
		return "internal error"
	}
}
