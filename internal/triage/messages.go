package triage

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"support-agent/internal/domain"
)

// Contacts fills the handoff templates.
type Contacts struct {
	Phone        string
	SalesEmail   string
	SupportEmail string
	TechEmail    string
	HelloEmail   string
}

// Messages renders the canned reply sent instead of a model answer when a conversation is handed off.
type Messages struct {
	contacts Contacts
	ticketID func() string
}

func NewMessages(contacts Contacts) *Messages {
	return &Messages{contacts: contacts, ticketID: newTicketID}
}

func newTicketID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (m *Messages) Transfer(category domain.Category) string {
	c := m.contacts
	switch category {
	case domain.CategorySales:
		return fmt.Sprintf(`I'll connect you with our sales team for detailed pricing and demos!

📞 **Immediate Help:**
• Call: %s
• Email: %s
• Book a demo: [Schedule here]

A sales representative will contact you within 1 hour during business hours (9 AM - 6 PM EAT).`, c.Phone, c.SalesEmail)

	case domain.CategorySupport:
		return fmt.Sprintf(`I'm connecting you with a human support specialist who can better assist you.

👨‍💼 **Human Support:**
• Live chat will connect shortly
• Email: %s
• Phone: %s

Expected response time: 15-30 minutes during business hours.`, c.SupportEmail, c.Phone)

	case domain.CategoryTechnical:
		return fmt.Sprintf(`This requires our technical team's expertise. I'm escalating this for you.

🔧 **Technical Support:**
• Priority ticket created
• Email: %s
• Your ticket ID: #%s

A technical specialist will reach out within 2 hours.`, c.TechEmail, m.ticketID())

	default:
		return fmt.Sprintf(`I'm connecting you with a human agent who can provide more personalized assistance.

💬 **Human Agent:**
• Transferring now...
• Email: %s
• Phone: %s

Please hold while I connect you.`, c.HelloEmail, c.Phone)
	}
}
