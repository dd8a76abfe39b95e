package validator

import (
	"log"
	"math"
	"strings"

	"paygate_backend/internal/models"

	"github.com/go-playground/validator/v10"
)

type ruleSet struct {
	gateways map[string]struct{}
}

func registerCustomRules(v *validator.Validate, rules *ruleSet) {
	mustRegister := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			log.Fatalf("failed to register custom validation tag '%s': %v", tag, err)
		}
	}

	mustRegister("is-gateway", rules.validateGateway)
	mustRegister("is-purchase-status", validatePurchaseStatus)
	mustRegister("not-blank", validateNotBlank)
	mustRegister("finite", validateFinite)
}

// validateGateway accepts registered gateway names. Empty means "use the default".
func (r *ruleSet) validateGateway(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, ok := r.gateways[value]
	return ok
}

func validatePurchaseStatus(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return models.PurchaseStatus(value).Known()
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func validateFinite(fl validator.FieldLevel) bool {
	f := fl.Field().Float()
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
