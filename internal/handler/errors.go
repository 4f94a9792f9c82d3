package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"inpatient-capacity-backend/pkg/apperrors"
	"inpatient-capacity-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// respondError maps service errors onto the response envelope
func respondError(c *gin.Context, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		log.Error().Err(err).Str("request_id", c.GetString("request_id")).Msg("unhandled error")
		_ = c.Error(err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	status := statusFor(appErr.Type)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", c.GetString("request_id")).Msg("request failed")
		_ = c.Error(err)
	}

	message := appErr.Message
	if appErr.Type == apperrors.ErrorTypeInternal {
		message = "Internal server error"
	}

	var details []utils.FieldError
	if appErr.Code != "" || len(appErr.Details) > 0 {
		details = append(details, utils.FieldError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		})
	}
	utils.ErrorResponse(c, status, message, details...)
}

func statusFor(t apperrors.ErrorType) int {
	switch t {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeConflict, apperrors.ErrorTypeIntegrity:
		return http.StatusConflict
	case apperrors.ErrorTypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// bindError reports a request body that failed to decode or validate
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]utils.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, utils.FieldError{
				Field:   jsonFieldName(fe.Field()),
				Code:    strings.ToUpper(fe.Tag()),
				Message: fe.Field() + " failed " + fe.Tag() + " validation",
			})
		}
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", fields...)
		return
	}
	utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
}

func jsonFieldName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && (field[i-1] < 'A' || field[i-1] > 'Z') {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// parseID reads a positive numeric path parameter
func parseID(c *gin.Context, name, label string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid "+label+" ID")
		return 0, false
	}
	return uint(id), true
}

// parseOptionalID reads a positive numeric query parameter, nil when absent
func parseOptionalID(c *gin.Context, name string) (*uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid "+name)
		return nil, false
	}
	v := uint(id)
	return &v, true
}

// parseOptionalBool reads a boolean query parameter, nil when absent
func parseOptionalBool(c *gin.Context, name string) (*bool, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid "+name)
		return nil, false
	}
	return &v, true
}
