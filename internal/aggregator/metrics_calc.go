package aggregator

// lapseRateFPerThousandFt is the fixed dry-adiabatic-ish approximation
// spec §4.8 bullet 3 calls for: "≈3.5 °F per 1,000 ft".
const lapseRateFPerThousandFt = 3.5

// estimateTemperatureAt projects a reference-elevation temperature reading
// to targetFeet using the fixed lapse rate. Positive elevation gain cools
// the estimate; negative gain (projecting downhill) warms it.
func estimateTemperatureAt(referenceTempF float64, referenceFeet, targetFeet int) float64 {
	deltaThousandsFt := float64(targetFeet-referenceFeet) / 1000
	return referenceTempF - deltaThousandsFt*lapseRateFPerThousandFt
}

// rainRiskScore scores 0 (all snow) to 10 (all rain) from how far the
// freezing level sits above the mountain's base relative to its vertical
// span. A freezing level at or below base is pure snow; at or above
// summit is pure rain.
func rainRiskScore(freezingLevelFt, baseFeet, summitFeet int) float64 {
	span := summitFeet - baseFeet
	if span <= 0 {
		return 0
	}
	fraction := float64(freezingLevelFt-baseFeet) / float64(span)
	return clamp(fraction*10, 0, 10)
}

// powderScoreInputs are the weighted components spec §4.8 bullet 3 lists:
// "{24 h snowfall, 48 h snowfall, temperature, wind, rain risk}".
type powderScoreInputs struct {
	Snowfall24hIn float64
	Snowfall48hIn float64
	TemperatureF  float64
	WindMPH       float64
	RainRisk      float64
}

// powderScoreWeights are the relative contribution of each input, tuned so
// heavy recent snowfall at cold, calm conditions scores near 10 and a warm,
// windy, rain-risked day scores near 0.
var powderScoreWeights = struct {
	Snowfall24h float64
	Snowfall48h float64
	Temperature float64
	Wind        float64
	RainRisk    float64
}{
	Snowfall24h: 0.40,
	Snowfall48h: 0.20,
	Temperature: 0.15,
	Wind:        0.10,
	RainRisk:    0.15,
}

// powderScore combines inputs into a single [0, 10] score plus a verdict
// string from fixed bands.
func powderScore(in powderScoreInputs) (float64, string) {
	snowfall24Component := clamp(in.Snowfall24hIn/12*10, 0, 10)
	snowfall48Component := clamp(in.Snowfall48hIn/18*10, 0, 10)
	temperatureComponent := temperatureFavorability(in.TemperatureF)
	windComponent := windFavorability(in.WindMPH)
	rainRiskComponent := clamp(10-in.RainRisk, 0, 10)

	score := snowfall24Component*powderScoreWeights.Snowfall24h +
		snowfall48Component*powderScoreWeights.Snowfall48h +
		temperatureComponent*powderScoreWeights.Temperature +
		windComponent*powderScoreWeights.Wind +
		rainRiskComponent*powderScoreWeights.RainRisk

	score = clamp(score, 0, 10)
	return score, powderVerdict(score)
}

// temperatureFavorability peaks around 20°F (classic cold-smoke range) and
// falls off toward freezing or deep cold.
func temperatureFavorability(tempF float64) float64 {
	distanceFromIdeal := tempF - 20
	if distanceFromIdeal < 0 {
		distanceFromIdeal = -distanceFromIdeal
	}
	return clamp(10-distanceFromIdeal/3, 0, 10)
}

// windFavorability penalizes wind linearly past a calm threshold.
func windFavorability(windMPH float64) float64 {
	const calmThreshold = 10
	if windMPH <= calmThreshold {
		return 10
	}
	return clamp(10-(windMPH-calmThreshold)/3, 0, 10)
}

func powderVerdict(score float64) string {
	switch {
	case score >= 8:
		return "epic"
	case score >= 6:
		return "good"
	case score >= 4:
		return "fair"
	case score >= 2:
		return "poor"
	default:
		return "skip it"
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
