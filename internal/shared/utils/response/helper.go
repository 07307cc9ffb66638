package response

import (
	"errors"
	"net/http"

	"seatflow/internal/shared/apperr"
	"seatflow/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

func RespondJSON(c *gin.Context, status string, code int, message string, data interface{}, errors interface{}) {
	c.JSON(code, StandardApiResponse{
		Status:     status,
		StatusCode: code,
		Message:    message,
		Data:       data,
		Errors:     errors,
	})
}

// RespondError translates a service error into the standard error envelope
func RespondError(c *gin.Context, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		appErr = apperr.Fatal("internal server error", err)
	}

	code := appErr.HTTPStatus()
	if code >= http.StatusInternalServerError {
		logger.GetDefault().LogHTTPError(c, err, code)
	}

	details := ErrorDetails{Kind: string(appErr.Kind), Code: appErr.Code, Fields: appErr.Fields}
	message := appErr.Message
	if appErr.Kind == apperr.KindFatal {
		message = "internal server error"
		details.Fields = nil
	}
	RespondJSON(c, "error", code, message, nil, details)
}

// RespondBindingError reports request binding and validation failures
func RespondBindingError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		RespondJSON(c, "error", http.StatusBadRequest, "Invalid request data", nil, fields)
		return
	}
	RespondJSON(c, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
}
