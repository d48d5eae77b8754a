package feature

// Style is registered with the renderer once at startup. Field values
// mirror the map layers the frontend paints.
type Style struct {
	Icon                string     `json:"icon" mapstructure:"icon" validate:"required"`
	IconURL             string     `json:"iconUrl,omitempty" mapstructure:"iconUrl"`
	HighlightIcon       string     `json:"highlightIcon" mapstructure:"highlightIcon" validate:"required"`
	HighlightIconURL    string     `json:"highlightIconUrl,omitempty" mapstructure:"highlightIconUrl"`
	IconSize            float64    `json:"iconSize" mapstructure:"iconSize" validate:"gt=0"`
	IconAnchor          string     `json:"iconAnchor" mapstructure:"iconAnchor" validate:"oneof=center left right top bottom top-left top-right bottom-left bottom-right"`
	IconAllowOverlap    bool       `json:"iconAllowOverlap" mapstructure:"iconAllowOverlap"`
	IconIgnorePlacement bool       `json:"iconIgnorePlacement" mapstructure:"iconIgnorePlacement"`
	TrailWidth          float64    `json:"trailWidth" mapstructure:"trailWidth" validate:"gt=0"`
	TrailColor          string     `json:"trailColor" mapstructure:"trailColor" validate:"hexcolor"`
	Center              [2]float64 `json:"center" mapstructure:"center"`
	Zoom                float64    `json:"zoom" mapstructure:"zoom" validate:"gte=0"`
}

// DefaultStyle returns the stock airplane icons and red trails.
func DefaultStyle() Style {
	return Style{
		Icon:                "airplane",
		HighlightIcon:       "airplane-highlight",
		IconSize:            0.05,
		IconAnchor:          "bottom",
		IconAllowOverlap:    true,
		IconIgnorePlacement: true,
		TrailWidth:          3,
		TrailColor:          "#F7455D",
		Center:              [2]float64{39, 35},
		Zoom:                3,
	}
}
