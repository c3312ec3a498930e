package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepairLegacyText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"valid utf8 trimmed", "  AGENTE ADUANAL  ", "AGENTE ADUANAL"},
		{"valid utf8 with accents untouched", "José", "José"},
		{"windows-1252 bytes decoded", "M\xe9xico", "México"},
		{"windows-1252 enye", "Compa\xf1\xeda", "Compañía"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RepairLegacyText(tt.in))
		})
	}
}
