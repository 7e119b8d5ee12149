package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.txt
var templatesFS embed.FS

var inviteTmpl = template.Must(template.ParseFS(templatesFS, "templates/workshop_invite.txt"))

// InviteSubject is the subject line of the workshop access email.
const InviteSubject = "🏞️ Your Hiking Workshop Access is Ready!"

const (
	siteURL      = "https://manav.in"
	supportEmail = "support@manav.in"
)

// Invite describes the workshop access email for one captured payment.
type Invite struct {
	Email     string
	Amount    decimal.Decimal // major units
	Currency  string
	PaymentID string
}

type inviteView struct {
	SiteURL        string
	SupportEmail   string
	CurrencySymbol string
	Amount         string
	PaymentID      string
}

// RenderInvite builds the plain-text invite message.
func RenderInvite(inv Invite) (Message, error) {
	var buf bytes.Buffer
	err := inviteTmpl.Execute(&buf, inviteView{
		SiteURL:        siteURL,
		SupportEmail:   supportEmail,
		CurrencySymbol: currencySymbol(inv.Currency),
		Amount:         inv.Amount.String(),
		PaymentID:      inv.PaymentID,
	})
	if err != nil {
		return Message{}, fmt.Errorf("render invite: %w", err)
	}
	return Message{To: inv.Email, Subject: InviteSubject, Text: buf.String()}, nil
}

func currencySymbol(code string) string {
	switch code {
	case "", "INR":
		return "₹"
	case "USD":
		return "$"
	case "EUR":
		return "€"
	}
	return code + " "
}
