package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSN_EscapesPassword(t *testing.T) {
	tests := []struct {
		password string
		want     string
	}{
		{"secret", "password=secret "},
		{"", "password='' "},
		{"with space", "password='with space' "},
		{"it's", `password='it\'s' `},
		{`back\slash`, `password='back\\slash' `},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			o := NewOptions()
			o.Password = tt.password
			assert.Contains(t, o.DSN(), tt.want)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("POSTGRES_PASSWORD", "from-env")

	o := NewOptions()
	assert.Empty(t, o.Validate())
	assert.Equal(t, "from-env", o.Password)

	o.Host = ""
	o.Database = ""
	assert.Len(t, o.Validate(), 2)
}
