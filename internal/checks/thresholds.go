package checks

// Thresholds holds the day and score boundaries used by the rules. A value
// equal to a boundary falls into the more urgent band.
type Thresholds struct {
	SSL        SSLThresholds        `mapstructure:"ssl"`
	Domain     DomainThresholds     `mapstructure:"domain"`
	Lighthouse LighthouseThresholds `mapstructure:"lighthouse"`
}

type SSLThresholds struct {
	SoonDays    int `mapstructure:"soon_days"`
	WarningDays int `mapstructure:"warning_days"`
}

type DomainThresholds struct {
	UrgentDays  int `mapstructure:"urgent_days"`
	SoonDays    int `mapstructure:"soon_days"`
	WarningDays int `mapstructure:"warning_days"`
	RenewedDays int `mapstructure:"renewed_days"`
}

type LighthouseThresholds struct {
	Poor float64 `mapstructure:"poor"`
	Good float64 `mapstructure:"good"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		SSL: SSLThresholds{
			SoonDays:    7,
			WarningDays: 15,
		},
		Domain: DomainThresholds{
			UrgentDays:  7,
			SoonDays:    15,
			WarningDays: 30,
			RenewedDays: 365,
		},
		Lighthouse: LighthouseThresholds{
			Poor: 50,
			Good: 90,
		},
	}
}

// WithDefaults fills zero fields from DefaultThresholds.
func (t Thresholds) WithDefaults() Thresholds {
	d := DefaultThresholds()
	if t.SSL.SoonDays == 0 {
		t.SSL.SoonDays = d.SSL.SoonDays
	}
	if t.SSL.WarningDays == 0 {
		t.SSL.WarningDays = d.SSL.WarningDays
	}
	if t.Domain.UrgentDays == 0 {
		t.Domain.UrgentDays = d.Domain.UrgentDays
	}
	if t.Domain.SoonDays == 0 {
		t.Domain.SoonDays = d.Domain.SoonDays
	}
	if t.Domain.WarningDays == 0 {
		t.Domain.WarningDays = d.Domain.WarningDays
	}
	if t.Domain.RenewedDays == 0 {
		t.Domain.RenewedDays = d.Domain.RenewedDays
	}
	if t.Lighthouse.Poor == 0 {
		t.Lighthouse.Poor = d.Lighthouse.Poor
	}
	if t.Lighthouse.Good == 0 {
		t.Lighthouse.Good = d.Lighthouse.Good
	}
	return t
}
