package classify

import (
	"regexp"
	"strings"

	"github.com/korjavin/mise/pkg/models"
)

var (
	explicitTemp = regexp.MustCompile(`(?i)(\d{2,3})\s*(?:°|º|degrees?\s*)?\s*([FC])\b`)
	namedTemp    = regexp.MustCompile(`(?i)(\d{2,3})\s*(?:°|º)?\s*(?:degrees?\s*)?(fahrenheit|celsius)\b`)
	contextTemp  = regexp.MustCompile(`(?i)\b(?:oven|heat|preheat(?:ed)?)\b[^.;]{0,30}?\b(\d{2,3})\s*(°|º|degrees?)?\s*([a-z]*)`)
)

// units that make a number near "heat" something other than a temperature
var nonTempUnits = map[string]bool{
	"minute": true, "minutes": true, "min": true, "mins": true,
	"hour": true, "hours": true, "second": true, "seconds": true,
	"cup": true, "cups": true, "g": true, "grams": true, "ml": true,
	"tablespoons": true, "teaspoons": true, "tbsp": true, "tsp": true,
}

// ExtractTemperature returns the cooking temperature stated in text, or nil.
// Explicit F/C markers win; otherwise a number near an oven or heat word is
// taken, with the unit inferred from magnitude.
func ExtractTemperature(text string) *models.Temperature {
	if m := namedTemp.FindStringSubmatch(text); m != nil {
		unit := "C"
		if strings.EqualFold(m[2], "fahrenheit") {
			unit = "F"
		}
		return &models.Temperature{Value: atoi(m[1]), Unit: unit}
	}
	if m := explicitTemp.FindStringSubmatch(text); m != nil {
		return &models.Temperature{Value: atoi(m[1]), Unit: strings.ToUpper(m[2])}
	}
	for _, m := range contextTemp.FindAllStringSubmatch(text, -1) {
		v := atoi(m[1])
		if v < 50 {
			continue
		}
		if m[2] == "" && nonTempUnits[strings.ToLower(m[3])] {
			continue
		}
		unit := "C"
		if v > 100 {
			unit = "F"
		}
		return &models.Temperature{Value: v, Unit: unit}
	}
	return nil
}
