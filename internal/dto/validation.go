package dto

import (
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/credassure/credassure-api/internal/models"
)

// Custom binding validations shared by request payloads. Registered once on
// gin's validator engine so handler binding rejects bad enums before the
// service layer sees them.
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("bureau", validBureau)
		_ = v.RegisterValidation("reportformat", validReportFormat)
	}
}

func validBureau(fl validator.FieldLevel) bool {
	return models.ValidBureau(models.Bureau(strings.ToUpper(fl.Field().String())))
}

func validReportFormat(fl validator.FieldLevel) bool {
	switch models.ReportFormat(strings.ToLower(fl.Field().String())) {
	case models.ReportFormatCSV, models.ReportFormatPDF:
		return true
	}
	return false
}
