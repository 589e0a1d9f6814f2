package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	pkgErrors "github.com/vogiaan1904/barberqueue/pkg/errors"
)

type Resp struct {
	ErrorCode  string `json:"error_code,omitempty"`
	Message    string `json:"message"`
	MessageKey string `json:"message_key,omitempty"`
	Data       any    `json:"data,omitempty"`
}

func parseHttpError(err error) (int, Resp) {
	var parsedErr *pkgErrors.HTTPError
	if errors.As(err, &parsedErr) {
		statusCode := parsedErr.StatusCode
		if statusCode == 0 {
			statusCode = http.StatusBadRequest
		}

		return statusCode, Resp{
			ErrorCode:  parsedErr.Code,
			Message:    parsedErr.Message,
			MessageKey: parsedErr.MessageKey,
		}
	}

	return http.StatusInternalServerError, Resp{
		ErrorCode: "BQ500",
		Message:   "Internal server error",
	}
}

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Resp{Message: "Success", Data: data})
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Resp{Message: "Created", Data: data})
}

// Error writes err and aborts the chain. Errors that are not
// *errors.HTTPError become a 500.
func Error(c *gin.Context, err error) {
	status, resp := parseHttpError(err)
	c.AbortWithStatusJSON(status, resp)
}
