package validator

import (
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/AnshRaj112/providerhub-backend/internal/models"
)

var phoneRegex = regexp.MustCompile(`^\+?[0-9][0-9 ()-]{5,18}[0-9]$`)

func registerCustomRules(v *validator.Validate) {
	mustRegister := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic("validator: register " + tag + ": " + err.Error())
		}
	}

	mustRegister("phone", validatePhone)
	mustRegister("risk_level", validateRiskLevel)
}

// Empty values pass; pair with required when the field is mandatory.
func validatePhone(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return phoneRegex.MatchString(value)
}

func validateRiskLevel(fl validator.FieldLevel) bool {
	switch models.RiskLevel(fl.Field().String()) {
	case "", models.RiskLow, models.RiskMedium, models.RiskHigh:
		return true
	}
	return false
}
