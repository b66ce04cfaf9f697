package config

// Config holds the detection geometry and threshold for one signal head.
// It is a plain value: readers always work on a copy taken from the Store,
// never on a shared reference.
type Config struct {
	// Master region of interest covering the whole signal head, in frame
	// coordinates.
	MasterX      int
	MasterY      int
	MasterWidth  int
	MasterHeight int

	// Lamp centers, relative to the master region origin. Index order is
	// fixed: red, yellow, green.
	RedX, RedY       int
	YellowX, YellowY int
	GreenX, GreenY   int

	// LampRadius is the sampling disk radius shared by all three lamps.
	LampRadius int

	// MinBrightness is the mean-luminance threshold a lamp must exceed to
	// count as lit (0-255).
	MinBrightness int
}

// Default returns the compiled-in configuration, matching the reference
// deployment geometry.
func Default() Config {
	return Config{
		MasterX:       385,
		MasterY:       207,
		MasterWidth:   82,
		MasterHeight:  315,
		RedX:          42,
		RedY:          33,
		YellowX:       40,
		YellowY:       154,
		GreenX:        40,
		GreenY:        251,
		LampRadius:    37,
		MinBrightness: 80,
	}
}

// LampOffsets returns the three lamp centers in red, yellow, green order.
func (c Config) LampOffsets() [3][2]int {
	return [3][2]int{
		{c.RedX, c.RedY},
		{c.YellowX, c.YellowY},
		{c.GreenX, c.GreenY},
	}
}

// Document is the wire/file form of a configuration update. Every field is
// optional: a nil field keeps the value the store currently holds, so partial
// uploads merge over the previous configuration.
type Document struct {
	MasterX       *int `json:"master_roi_x,omitempty"`
	MasterY       *int `json:"master_roi_y,omitempty"`
	MasterWidth   *int `json:"master_roi_width,omitempty"`
	MasterHeight  *int `json:"master_roi_height,omitempty"`
	RedX          *int `json:"red_x,omitempty"`
	RedY          *int `json:"red_y,omitempty"`
	YellowX       *int `json:"yellow_x,omitempty"`
	YellowY       *int `json:"yellow_y,omitempty"`
	GreenX        *int `json:"green_x,omitempty"`
	GreenY        *int `json:"green_y,omitempty"`
	LampRadius    *int `json:"lamp_radius,omitempty"`
	MinBrightness *int `json:"min_brightness_threshold,omitempty"`
}

// MergeInto applies the document's present fields onto base and returns the
// result. base is not modified.
func (d Document) MergeInto(base Config) Config {
	merged := base
	apply := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&merged.MasterX, d.MasterX)
	apply(&merged.MasterY, d.MasterY)
	apply(&merged.MasterWidth, d.MasterWidth)
	apply(&merged.MasterHeight, d.MasterHeight)
	apply(&merged.RedX, d.RedX)
	apply(&merged.RedY, d.RedY)
	apply(&merged.YellowX, d.YellowX)
	apply(&merged.YellowY, d.YellowY)
	apply(&merged.GreenX, d.GreenX)
	apply(&merged.GreenY, d.GreenY)
	apply(&merged.LampRadius, d.LampRadius)
	apply(&merged.MinBrightness, d.MinBrightness)
	return merged
}

// AsDocument returns the fully populated document form of a config, used by
// the state endpoint so clients can round-trip the current values.
func (c Config) AsDocument() Document {
	p := func(v int) *int { return &v }
	return Document{
		MasterX:       p(c.MasterX),
		MasterY:       p(c.MasterY),
		MasterWidth:   p(c.MasterWidth),
		MasterHeight:  p(c.MasterHeight),
		RedX:          p(c.RedX),
		RedY:          p(c.RedY),
		YellowX:       p(c.YellowX),
		YellowY:       p(c.YellowY),
		GreenX:        p(c.GreenX),
		GreenY:        p(c.GreenY),
		LampRadius:    p(c.LampRadius),
		MinBrightness: p(c.MinBrightness),
	}
}
