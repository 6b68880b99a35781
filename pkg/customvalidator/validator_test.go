package customvalidator

import (
	"testing"

	"github.com/aarondl/null/v8"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Urgency string `validate:"required,urgency"`
	Flag    string `validate:"omitempty,yesno"`
	Phone   string `validate:"omitempty,phone_intl"`
	Title   string `validate:"notblank"`
}

func TestRegisterCustomValidations(t *testing.T) {
	v := validator.New()
	require.NoError(t, RegisterCustomValidations(v))

	tests := []struct {
		name  string
		input sample
		ok    bool
	}{
		{"валидный", sample{Urgency: "high", Flag: "Yes", Phone: "+992 900-11-22-33", Title: "Течёт кран"}, true},
		{"срочность в другом регистре", sample{Urgency: "Medium", Title: "x"}, true},
		{"неизвестная срочность", sample{Urgency: "urgent", Title: "x"}, false},
		{"флаг не yes/no", sample{Urgency: "low", Flag: "maybe", Title: "x"}, false},
		{"телефон с буквами", sample{Urgency: "low", Phone: "call me", Title: "x"}, false},
		{"пустой заголовок", sample{Urgency: "low", Title: "   "}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.input)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

type nullSample struct {
	Date null.String `validate:"omitempty,datetime=2006-01-02"`
}

func TestRegisterCustomValidations_NullTypes(t *testing.T) {
	v := validator.New()
	require.NoError(t, RegisterCustomValidations(v))

	assert.NoError(t, v.Struct(nullSample{}))
	assert.NoError(t, v.Struct(nullSample{Date: null.StringFrom("2026-03-01")}))
	assert.Error(t, v.Struct(nullSample{Date: null.StringFrom("01.03.2026")}))
}
