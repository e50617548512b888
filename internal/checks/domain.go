package checks

import "fmt"

func domainRule(t DomainThresholds) Rule {
	return Rule{
		Kind: KindDomain,
		Name: "domain",
		Evaluate: func(p Payload) Verdict {
			return evaluateDomain(p.Meta, t)
		},
	}
}

// evaluateDomain walks the bands from most to least severe and stops at the
// first match.
func evaluateDomain(meta Meta, t DomainThresholds) Verdict {
	if meta.Bool("domainExpired") {
		return Verdict{
			Status:  StatusError,
			Message: "Domain has expired! Immediate renewal is required.",
		}
	}

	if msg := meta.String("message"); meta.Bool("domainExpiring") || msg != "" {
		if msg == "" {
			msg = "Domain is expiring soon."
		}
		return Verdict{Status: StatusWarning, Message: msg}
	}

	days, ok := meta.Int("domainDays")
	if !ok {
		return Verdict{}
	}

	switch {
	case days <= t.UrgentDays:
		return Verdict{
			Status:  StatusWarning,
			Message: fmt.Sprintf("Domain expires in %s! Renew now.", plural(days, "day", "days")),
		}
	case days <= t.SoonDays:
		return Verdict{
			Status:  StatusWarning,
			Message: fmt.Sprintf("Domain expires in %s. Renewal recommended.", plural(days, "day", "days")),
		}
	case days <= t.WarningDays:
		return Verdict{
			Status:  StatusWarning,
			Message: fmt.Sprintf("Domain expires in %s.", plural(days, "day", "days")),
		}
	case days > t.RenewedDays:
		return Verdict{Status: StatusSuccess, Message: "Renewed for more than a year."}
	default:
		return Verdict{Status: StatusSuccess, Message: "Domain is active and healthy."}
	}
}
