package responder

import (
	"strconv"

	"service-desk-bot/internal/domain"
)

const (
	adaptiveCardSchema  = "http://adaptivecards.io/schemas/adaptive-card.json"
	adaptiveCardVersion = "1.0"
	cardDateLayout      = "02/01/2006"
)

type card map[string]any

func adaptiveCard(body []any, actions []any) domain.Attachment {
	c := card{
		"$schema": adaptiveCardSchema,
		"type":    "AdaptiveCard",
		"version": adaptiveCardVersion,
		"body":    body,
	}
	if len(actions) > 0 {
		c["actions"] = actions
	}
	return domain.Attachment{ContentType: domain.AdaptiveCardContentType, Content: c}
}

func textBlock(text string, extra card) card {
	b := card{"type": "TextBlock", "text": text, "wrap": true}
	for k, v := range extra {
		b[k] = v
	}
	return b
}

func container(items ...any) card {
	return card{"type": "Container", "items": items}
}

// WelcomeCard is sent when a user joins the conversation.
func (c *Catalog) WelcomeCard() domain.Attachment {
	body := []any{
		textBlock(c.Welcome.Title, card{"size": "Medium", "weight": "Bolder"}),
		textBlock(c.Welcome.Text, nil),
	}
	actions := make([]any, 0, len(c.Welcome.Examples))
	for _, ex := range c.Welcome.Examples {
		actions = append(actions, card{"type": "Action.Submit", "title": ex, "data": ex})
	}
	return adaptiveCard(body, actions)
}

// KBCard shows one knowledge base answer; index is its 1-based position.
func (c *Catalog) KBCard(index int, answer string) domain.Attachment {
	body := []any{
		container(textBlock(strconv.Itoa(index), card{"size": "Large", "weight": "Bolder"})),
		container(textBlock(answer, nil)),
	}
	actions := []any{
		card{"type": "Action.OpenUrl", "title": c.SupportTicket.KBLink, "url": c.SupportTicket.KBLinkURL},
	}
	return adaptiveCard(body, actions)
}

// TicketCard summarizes one support ticket.
func (c *Catalog) TicketCard(t domain.SupportTicket) domain.Attachment {
	st := c.SupportTicket
	header := container(
		textBlock(Format(st.CardTicketID, "ticketId", t.ID), card{"size": "Medium", "weight": "Bolder"}),
		card{
			"type": "ColumnSet",
			"columns": []any{
				card{
					"type":  "Column",
					"width": "stretch",
					"items": []any{
						textBlock(Format(st.CardCreator, "creator", t.UserID), card{"spacing": "None"}),
						textBlock(Format(st.CardCreatedAt, "date", t.OpenDate.Format(cardDateLayout)), card{"isSubtle": true, "spacing": "None"}),
					},
				},
			},
		},
	)
	details := container(
		textBlock(t.Description, nil),
		card{
			"type": "FactSet",
			"facts": []any{
				card{"title": st.CardStatusTitle, "value": c.TicketStatus(t.Status)},
				card{"title": st.CardLastUpdateTitle, "value": t.LastUpdate.Format(cardDateLayout)},
			},
		},
	)
	return adaptiveCard([]any{header, details}, nil)
}

// TicketStatus is the label of a ticket status, empty when unknown.
func (c *Catalog) TicketStatus(s domain.TicketStatus) string {
	switch s {
	case domain.TicketStatusOpen:
		return c.SupportTicket.CardStatusOpen
	case domain.TicketStatusClosed:
		return c.SupportTicket.CardStatusClosed
	default:
		return ""
	}
}
