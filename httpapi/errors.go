package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-payments/core"
)

type errorBody struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeError(c *gin.Context, err error) {
	mapped := core.MapError(err)
	status := mapped.Code
	if status < http.StatusBadRequest || status > 599 {
		status = http.StatusInternalServerError
	}
	description := mapped.Message
	if status >= http.StatusInternalServerError && mapped.TextCode == core.ErrorCodeInternal {
		description = "Something went wrong"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorEnvelope{Error: errorBody{
		Code:        mapped.TextCode,
		Description: description,
	}})
}

func badRequest(c *gin.Context, description string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorEnvelope{Error: errorBody{
		Code:        core.ErrorCodeBadRequest,
		Description: description,
	}})
}
