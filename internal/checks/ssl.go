package checks

import "fmt"

func sslRule(t SSLThresholds) Rule {
	return Rule{
		Kind: KindSSL,
		Name: "SSL",
		Evaluate: func(p Payload) Verdict {
			return evaluateSSL(p.Meta, t)
		},
	}
}

func evaluateSSL(meta Meta, t SSLThresholds) Verdict {
	if meta.Bool("isExpired") {
		return Verdict{Status: StatusError, Message: "Certificate has expired!"}
	}

	days, ok := meta.Int("daysUntilExpiry")
	if !ok {
		return Verdict{}
	}

	switch {
	case days <= 0:
		return Verdict{Status: StatusWarning, Message: "Expires today."}
	case days <= t.SoonDays:
		return Verdict{
			Status:  StatusWarning,
			Message: fmt.Sprintf("Expiring soon (in %s)!", plural(days, "day", "days")),
		}
	case days <= t.WarningDays:
		return Verdict{
			Status:  StatusWarning,
			Message: fmt.Sprintf("Expires in %s. Plan a renewal.", plural(days, "day", "days")),
		}
	default:
		return Verdict{
			Status:  StatusSuccess,
			Message: fmt.Sprintf("Valid for %d more days.", days),
		}
	}
}
