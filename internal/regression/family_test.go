package regression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volcast/internal/volatility"
)

func TestFamilyString(t *testing.T) {
	tests := []struct {
		family Family
		want   string
	}{
		{FamilyLinear, "linear"},
		{FamilyKernel, "kernel"},
		{FamilyGAM, "gam"},
		{FamilyLasso, "lasso"},
		{FamilySARIMAX, "sarimax"},
		{Family(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.family.String())
	}
}

func TestFamilyIsValid(t *testing.T) {
	for _, f := range Families() {
		assert.True(t, f.IsValid(), f.String())
	}
	assert.False(t, Family(-1).IsValid())
	assert.False(t, Family(99).IsValid())
}

func TestParseFamily(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Family
		wantErr bool
	}{
		{name: "linear", input: "linear", want: FamilyLinear},
		{name: "ols alias", input: "ols", want: FamilyLinear},
		{name: "kernel", input: "kernel", want: FamilyKernel},
		{name: "gam upper", input: "GAM", want: FamilyGAM},
		{name: "lasso padded", input: "  lasso ", want: FamilyLasso},
		{name: "sarimax", input: "sarimax", want: FamilySARIMAX},
		{name: "unknown", input: "forest", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFamily(tt.input)
			if tt.wantErr {
				var ve *volatility.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, "family", ve.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewDispatch(t *testing.T) {
	for _, f := range Families() {
		model, err := New(f)
		require.NoError(t, err, f.String())
		assert.Equal(t, f, model.Family())
	}

	_, err := New(Family(42))
	assert.Error(t, err)
}
