package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Contact     string `json:"contact" validate:"required,contact"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

func TestStruct_ReportsJSONNames(t *testing.T) {
	err := Struct(sample{Contact: "admin@lh.io.in", NewPassword: "short"})
	require.Error(t, err)
	assert.Equal(t, "field 'new_password' failed 'min'", err.Error())
}

func TestStruct_Contact(t *testing.T) {
	for _, c := range []string{"admin@lh.io.in", "9845011111", "+91 98450 11111", "98450-11111"} {
		assert.NoError(t, Struct(sample{Contact: c, NewPassword: "LongEnough1"}), c)
	}
	for _, c := range []string{"not@valid@", "12345", "@lh.io.in", "1234567890123456"} {
		assert.Error(t, Struct(sample{Contact: c, NewPassword: "LongEnough1"}), c)
	}
}
