package utils

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
		errMsg  string
	}{
		{name: "place identifier", id: "SJ_biblioteca-humanidades", wantErr: false},
		{name: "button id", id: "place-menu.route", wantErr: false},
		{name: "empty ID", id: "", wantErr: true, errMsg: "id cannot be empty"},
		{name: "ID too long", id: strings.Repeat("a", 101), wantErr: true, errMsg: "id too long (max 100 characters)"},
		{name: "script injection", id: "sala<script>", wantErr: true, errMsg: "id contains invalid characters"},
		{name: "path traversal", id: "../../../etc/passwd", wantErr: true, errMsg: "id contains invalid characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.errMsg, err.Error())
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateLatitudeAndLongitude(t *testing.T) {
	assert.NoError(t, ValidateLatitude(-33.4983))
	assert.NoError(t, ValidateLatitude(90))
	assert.Error(t, ValidateLatitude(-90.0001))
	assert.Error(t, ValidateLatitude(math.NaN()))

	assert.NoError(t, ValidateLongitude(-70.6109))
	assert.NoError(t, ValidateLongitude(-180))
	assert.Error(t, ValidateLongitude(180.5))
	assert.Error(t, ValidateLongitude(math.NaN()))
}

func TestValidateAngle(t *testing.T) {
	assert.NoError(t, ValidateAngle(0))
	assert.NoError(t, ValidateAngle(359.9))
	assert.NoError(t, ValidateAngle(-45))
	assert.Error(t, ValidateAngle(math.Inf(1)))
	assert.Error(t, ValidateAngle(math.NaN()))
	assert.Error(t, ValidateAngle(1000))
}

func TestValidateCardinalPoints(t *testing.T) {
	assert.NoError(t, ValidateCardinalPoints(4))
	assert.NoError(t, ValidateCardinalPoints(8))
	assert.Error(t, ValidateCardinalPoints(16))
}

func TestValidateLocationParams(t *testing.T) {
	t.Run("valid campus coordinates", func(t *testing.T) {
		assert.Empty(t, ValidateLocationParams(-33.4983, -70.6109))
	})

	t.Run("both fields invalid", func(t *testing.T) {
		fieldErrors := ValidateLocationParams(120, -200)
		assert.Contains(t, fieldErrors, "lat")
		assert.Contains(t, fieldErrors, "lon")
	})
}
