// Файл: pkg/customvalidator/validator.go

package customvalidator

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"maintenance-system/pkg/constants"
)

var phoneRegex = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// RegisterCustomValidations регистрирует все кастомные правила валидации
// в переданном экземпляре валидатора.
func RegisterCustomValidations(v *validator.Validate) error {
	registerNullTypes(v)

	if err := v.RegisterValidation("urgency", isUrgency); err != nil {
		return err
	}
	if err := v.RegisterValidation("yesno", isYesNo); err != nil {
		return err
	}
	if err := v.RegisterValidation("phone_intl", isPhone); err != nil {
		return err
	}
	if err := v.RegisterValidation("notblank", isNotBlank); err != nil {
		return err
	}
	return nil
}

func isUrgency(fl validator.FieldLevel) bool {
	return constants.Urgency(strings.ToLower(fl.Field().String())).IsValid()
}

func isYesNo(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return strings.EqualFold(s, constants.Yes) || strings.EqualFold(s, constants.No)
}

func isPhone(fl validator.FieldLevel) bool {
	s := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(fl.Field().String())
	return phoneRegex.MatchString(s)
}

func isNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}
