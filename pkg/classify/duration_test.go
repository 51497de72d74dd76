package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/korjavin/mise/pkg/models"
)

func TestExtractDuration(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"Bring a pot of water to a boil — 10 min", 10},
		{"Boil the water -- 12 minutes", 12},
		{"Add pasta and cook for 8 minutes", 8},
		{"Simmer for 1 hour 30 minutes", 90},
		{"Braise 2 hrs and 15 mins", 135},
		{"Simmer 15-20 minutes", 20},
		{"Cook 2 to 3 minutes per side", 3},
		{"Roast for about 17 minutes", 20},
		{"Simmer roughly 11-13 minutes", 15},
		{"Simmer for about 15-17 minutes", 20},
		{"Simmer for about 15 - 17 minutes", 20},
		{"Simmer for about 15-17 minutes, stirring", 20},
		{"Simmer until thick — 17 min", 17},
		{"Bake for 1.5 hours", 90},
		{"Bake for 1 1/2 hours", 90},
		{"Rest for 1/2 hour", 30},
		{"Chill for 2 hours", 120},
		{"Bake 2-3 hours", 180},
		{"Leave for an hour", 60},
		{"Steep for half an hour", 30},
		{"Stir for 30 seconds", 1},
		{"Whisk for 90 seconds", 2},
		{"Let it rise for a 10-minute stretch", 10},
		{"Marinate for 48 hours", 1440},
		{"Cook for 0 minutes", 1},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := ExtractDuration(tt.text)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestExtractDurationNone(t *testing.T) {
	assert.Nil(t, ExtractDuration("Drain"))
	assert.Nil(t, ExtractDuration("Add 2 cups of stock"))
}

func TestExtractDurationAlwaysClamped(t *testing.T) {
	for _, text := range []string{"0 min", "9999 minutes", "100 hours", "1 second", "—5 min"} {
		got := ExtractDuration(text)
		require.NotNil(t, got, text)
		assert.GreaterOrEqual(t, *got, models.MinDuration, text)
		assert.LessOrEqual(t, *got, models.MaxDuration, text)
	}
}

func TestExtractDurationOverflow(t *testing.T) {
	for _, text := range []string{"99999999999999999999 minutes", "Cure for 99999999999999999999 hours", "Rest 9999999999 hours"} {
		got := ExtractDuration(text)
		require.NotNil(t, got, text)
		assert.Equal(t, models.MaxDuration, *got, text)
	}
}

func TestRoundToLadder(t *testing.T) {
	assert.Equal(t, 1, RoundToLadder(1))
	assert.Equal(t, 5, RoundToLadder(4))
	assert.Equal(t, 45, RoundToLadder(41))
	assert.Equal(t, 180, RoundToLadder(150))
	assert.Equal(t, 200, RoundToLadder(200))
}

func TestExtractTemperature(t *testing.T) {
	tests := []struct {
		text string
		want *models.Temperature
	}{
		{"Preheat oven to 350°F", &models.Temperature{Value: 350, Unit: "F"}},
		{"Bake at 180 C until golden", &models.Temperature{Value: 180, Unit: "C"}},
		{"Bake at 350 f for a while", &models.Temperature{Value: 350, Unit: "F"}},
		{"Roast at 200c", &models.Temperature{Value: 200, Unit: "C"}},
		{"Set the oven to 200 degrees Celsius", &models.Temperature{Value: 200, Unit: "C"}},
		{"Preheat the oven to 425.", &models.Temperature{Value: 425, Unit: "F"}},
		{"Heat the oil to 90 degrees", &models.Temperature{Value: 90, Unit: "C"}},
		{"Heat the oil for 10 minutes", nil},
		{"Heat 250 ml of milk", nil},
		{"Add 2 cups flour", nil},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTemperature(tt.text))
		})
	}
}
