package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

type memberPayload struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=OWNER ADMIN MEMBER"`
	Name  string `json:"name" validate:"notblank"`
}

func TestValidateStructSuccess(t *testing.T) {
	err := ValidateStruct(memberPayload{Email: "a@x.com", Role: "ADMIN", Name: "Ana"})
	require.NoError(t, err)
}

func TestValidateStructFailures(t *testing.T) {
	err := ValidateStruct(memberPayload{Email: "invalid", Role: "ROOT", Name: "   "})
	require.Error(t, err)

	vErrs, ok := err.(ValidationErrors)
	require.True(t, ok, "expected ValidationErrors, got %T", err)
	require.Len(t, vErrs, 3)

	fields := map[string]string{}
	for _, v := range vErrs {
		fields[v.Field] = v.Message()
	}
	require.Equal(t, "email must be a valid email", fields["email"])
	require.Equal(t, "role must be one of: OWNER, ADMIN, MEMBER", fields["role"])
	require.Equal(t, "name is required", fields["name"])
}

func TestRegisterValidation(t *testing.T) {
	require.NoError(t, RegisterValidation("mikan", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "mikan"
	}))

	type custom struct {
		Value string `validate:"mikan"`
	}

	require.NoError(t, ValidateStruct(custom{Value: "mikan"}))
	require.Error(t, ValidateStruct(custom{Value: "other"}))
}
