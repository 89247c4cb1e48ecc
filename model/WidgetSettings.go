package model

type WidgetSettings struct {
	MerchantId        int      `json:"merchant_id"`
	Enabled           bool     `json:"enabled"`
	CooldownMinutes   int      `json:"cooldown_minutes"`
	VisitLimitMinutes *int     `json:"visit_limit_minutes,omitempty"`
	Games             []string `json:"games"`
}

// DefaultWidgetSettings is the permissive fallback used when the settings row
// is missing or cannot be read: the widget renders and every game is allowed,
// so a transient backend issue never hides the widget.
func DefaultWidgetSettings(merchantId int) WidgetSettings {
	return WidgetSettings{
		MerchantId:      merchantId,
		Enabled:         true,
		CooldownMinutes: 60,
		Games:           []string{"wheel", "memory", "snake", "aim"},
	}
}
