package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// JSONResponse writes data as the top-level JSON body with the given status.
func JSONResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, data)
}

// SuccessResponse writes a 200 with data as the body.
func SuccessResponse(c echo.Context, data interface{}) error {
	return JSONResponse(c, http.StatusOK, data)
}

// ValidationErrorResponse writes a 400 listing each failed field.
func ValidationErrorResponse(c echo.Context, details []ValidationError) error {
	msg := "invalid request"
	if len(details) > 0 && details[0].Message != "" {
		msg = details[0].Message
	}
	return JSONResponse(c, http.StatusBadRequest, ErrorBody{
		Detail: msg,
		Code:   "ERR_VALIDATION",
		Errors: details,
	})
}

// InternalServerErrorResponse writes a generic 500.
func InternalServerErrorResponse(c echo.Context, message string) error {
	if message == "" {
		message = "Something went wrong"
	}
	return JSONResponse(c, http.StatusInternalServerError, ErrorBody{Detail: message, Code: "ERR_INTERNAL"})
}

// AppErrorResponse writes the status and params carried by an AppError;
// anything else becomes a 500 carrying the error text.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return JSONResponse(c, appErr.Status, ErrorBody{Detail: appErr.Message, Code: appErr.Code, Params: appErr.Params})
	}
	return InternalServerErrorResponse(c, err.Error())
}
