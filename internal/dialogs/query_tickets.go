package dialogs

import (
	"context"
	"regexp"
	"strings"

	"service-desk-bot/internal/dialog"
	"service-desk-bot/internal/domain"
	"service-desk-bot/internal/recognizer"
	"service-desk-bot/internal/responder"
	"service-desk-bot/internal/telemetry"
)

const ticketIDEntity = "ticket_id"

var pluralTickets = regexp.MustCompile(`chamados|tickets`)

// queryTicketsDialog shows one ticket by id, the open tickets of the user
// when asked in the plural, or the last ticket otherwise.
func (f *flows) queryTicketsDialog() dialog.Dialog {
	return dialog.NewWaterfall(QueryTicketsDialogID,
		f.authGate(telemetry.QueryTickets),
		f.queryTickets,
	)
}

func (f *flows) queryTickets(ctx context.Context, step *dialog.Step) (dialog.Result, error) {
	turn := step.Turn()
	if signedIn, _ := step.Result.(bool); !signedIn {
		return step.End(ctx, nil)
	}
	res, err := f.recognizerOptions(ctx, step, recognizer.AppSupportTicket)
	if err != nil {
		return dialog.Result{}, err
	}
	profile, err := Profile.Get(turn.User, domain.UserProfile{})
	if err != nil {
		return dialog.Result{}, err
	}
	user := userPrincipal(profile)
	text := f.Catalog.SupportTicket

	var tickets []domain.SupportTicket
	switch id := entityText(&res, ticketIDEntity); {
	case id != "":
		t, err := f.Tickets.GetByIDAndUser(ctx, id, user)
		if err != nil {
			return f.ticketsFailed(ctx, step, err)
		}
		if t == nil {
			turn.SendText(responder.Format(text.NoTicketFoundWithID, "ticketId", id))
			return step.End(ctx, nil)
		}
		tickets = append(tickets, *t)
	case isPlural(res.Text):
		tickets, err = f.Tickets.QueryByStatusAndUser(ctx, user, domain.TicketStatusOpen)
		if err != nil {
			return f.ticketsFailed(ctx, step, err)
		}
		if len(tickets) == 0 {
			turn.SendText(text.NoLastOpenTicketsFound)
			return step.End(ctx, nil)
		}
	default:
		t, err := f.Tickets.GetLastByUser(ctx, user)
		if err != nil {
			return f.ticketsFailed(ctx, step, err)
		}
		if t == nil {
			turn.SendText(text.NoLastTicketFound)
			return step.End(ctx, nil)
		}
		tickets = append(tickets, *t)
	}

	cards := make([]domain.Attachment, 0, len(tickets))
	for _, t := range tickets {
		cards = append(cards, f.Catalog.TicketCard(t))
	}
	turn.Send(domain.Carousel(cards))
	return step.End(ctx, nil)
}

func (f *flows) ticketsFailed(ctx context.Context, step *dialog.Step, err error) (dialog.Result, error) {
	turn := step.Turn()
	turn.Logger.ErrorContext(ctx, "query tickets failed", "error", err)
	turn.SendText(f.Catalog.SupportTicket.TicketQueryFailed)
	return step.End(ctx, nil)
}

func isPlural(text string) bool {
	return pluralTickets.MatchString(strings.ToLower(text))
}
