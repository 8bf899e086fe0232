package pricing

// DefaultPlaces is the default currency precision.
const DefaultPlaces int32 = 2

// Settings are store-level pricing switches.
type Settings struct {
	// Places is the number of decimal places money is rounded to.
	Places int32
	// AllowNegativePrices disables clipping of negative line and cart totals.
	AllowNegativePrices bool
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{Places: DefaultPlaces}
}
