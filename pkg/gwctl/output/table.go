package output

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/gwctl/gwctl/pkg/gwctl/identity"
	"github.com/gwctl/gwctl/pkg/gwctl/registry"
	"github.com/gwctl/gwctl/pkg/gwctl/token"
)

func WriteInstanceTable(w io.Writer, instances []registry.Instance) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tLABEL\tADDRESS\tPATH-PREFIX")
	for _, i := range instances {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", i.ID, i.Label, i.Address(), i.PathPrefix)
	}
	_ = tw.Flush()
}

// WriteClaims prints verified claims as aligned key/value lines.
func WriteClaims(w io.Writer, c *token.Claims, now time.Time) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	row := func(k, v string) { _, _ = fmt.Fprintf(tw, "%s:\t%s\n", k, v) }
	row("Issuer", c.Issuer)
	row("Subject", c.Subject)
	row("Audience", dash(c.Audience))
	row("Key ID", dash(c.KeyID))
	row("User", userLabel(c.User))
	if c.Team != nil {
		row("Team", fmt.Sprintf("%s (%s)", c.Team.Name, c.Team.ID))
	} else {
		row("Team", "-")
	}
	if c.IssuedAt != 0 {
		row("Issued", formatTime(time.Unix(c.IssuedAt, 0)))
	}
	row("Expires", formatTime(c.Expiry()))
	row("Time left", FormatRemaining(c.TimeLeft(now)))
	_ = tw.Flush()
}

// FormatRemaining renders d as "3h 12m", "12m 5s" or "expired".
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "expired"
	}
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

func userLabel(u *identity.UserInfo) string {
	if u == nil {
		return "-"
	}
	if u.Email != "" && u.Name != "" {
		return fmt.Sprintf("%s <%s>", u.Name, u.Email)
	}
	return u.Display()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
