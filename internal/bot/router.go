// Package bot routes each inbound activity: it continues, cancels or
// redirects the active dialog and dispatches new utterances by intent.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"service-desk-bot/internal/dialog"
	"service-desk-bot/internal/dialogs"
	"service-desk-bot/internal/domain"
	"service-desk-bot/internal/recognizer"
	"service-desk-bot/internal/responder"
	"service-desk-bot/internal/telemetry"
)

// Dispatch intents.
const (
	IntentAccountPassword = "l_service_desk_account_password"
	IntentSupportTicket   = "l_service_desk_support_ticket"
)

// Account and password intents.
const (
	IntentPasswordExpiration = "PASSWORD_EXPIRATION"
	IntentAccountLocked      = "ACCOUNT_LOCKED"
	IntentChangePassword     = "CHANGE_PASSWORD"

	infoIntentPrefix        = "INFO_"
	accountPasswordMinScore = 0.2
)

// Support ticket intents.
const (
	IntentQuerySupportTickets = "QUERY_SUPPORT_TICKETS"
	IntentNewSupportTicket    = "NEW_SUPPORT_TICKET"
	IntentSupportDelay        = "SUPPORT_DELAY"
)

// Router is the top-level turn handler.
type Router struct {
	dialogs     *dialog.Set
	catalog     *responder.Catalog
	recognizers *recognizer.Registry
	telemetry   telemetry.Tracker
}

func NewRouter(set *dialog.Set, catalog *responder.Catalog, recognizers *recognizer.Registry, tracker telemetry.Tracker) (*Router, error) {
	if set == nil {
		return nil, errors.New("bot: dialog set must not be nil")
	}
	if catalog == nil {
		return nil, errors.New("bot: catalog must not be nil")
	}
	if recognizers == nil {
		return nil, errors.New("bot: recognizers must not be nil")
	}
	if tracker == nil {
		return nil, errors.New("bot: telemetry must not be nil")
	}
	return &Router{dialogs: set, catalog: catalog, recognizers: recognizers, telemetry: tracker}, nil
}

// OnTurn handles one activity. The dialog stack is written back to the
// conversation bag of turn; flushing the bags is left to the caller. On
// error the bags are left as they were before the failing step.
func (r *Router) OnTurn(ctx context.Context, turn *dialog.TurnContext) (dialog.Result, error) {
	dc, err := dialog.LoadContext(r.dialogs, turn)
	if err != nil {
		return dialog.Result{}, err
	}

	var res dialog.Result
	switch turn.Activity.Type {
	case domain.ActivityMessage:
		res, err = r.onMessage(ctx, dc)
	case domain.ActivityConversationUpdate:
		r.onConversationUpdate(ctx, turn)
	default:
		if dc.Active() != nil {
			res, err = dc.Continue(ctx)
		}
	}
	if err != nil {
		return dialog.Result{}, err
	}
	if err := dc.Persist(); err != nil {
		return dialog.Result{}, err
	}
	turn.Logger.DebugContext(ctx, "turn routed", "result", describe(res), "depth", len(dc.Stack()))
	return res, nil
}

func (r *Router) onMessage(ctx context.Context, dc *dialog.Context) (dialog.Result, error) {
	turn := dc.Turn
	if r.catalog.IsCancellation(turn.Activity.Text) {
		return r.cancel(ctx, dc), nil
	}

	res, err := dc.Continue(ctx)
	if err != nil {
		return dialog.Result{}, err
	}

	switch res.Status {
	case dialog.StatusComplete:
		switch v := res.Value.(type) {
		case dialog.Redirect:
			turn.Logger.InfoContext(ctx, "redirecting", "to", v.To)
			return dc.Begin(ctx, v.To, nil)
		case dialog.Goodbye:
			return res, nil
		default:
			turn.Logger.DebugContext(ctx, "starting goodbye dialog")
			return dc.Begin(ctx, dialogs.GoodbyeDialogID, nil)
		}
	case dialog.StatusEmpty:
		if turn.Responded() {
			return res, nil
		}
		return r.dispatch(ctx, dc)
	default:
		return res, nil
	}
}

func (r *Router) cancel(ctx context.Context, dc *dialog.Context) dialog.Result {
	turn := dc.Turn
	r.track(ctx, turn, telemetry.Cancel)
	if dc.Active() == nil {
		turn.SendText(r.catalog.Cancellation.NothingToCancel)
		return dialog.Result{Status: dialog.StatusEmpty}
	}
	res := dc.CancelAll()
	turn.SendText(r.catalog.Cancellation.Cancelled)
	return res
}

func (r *Router) dispatch(ctx context.Context, dc *dialog.Context) (dialog.Result, error) {
	turn := dc.Turn
	res, ok := r.recognize(ctx, turn, recognizer.AppDispatch)
	if !ok {
		return dialog.Result{Status: dialog.StatusEmpty}, nil
	}
	top := recognizer.TopIntent(&res, "", 0)
	turn.Logger.DebugContext(ctx, "dispatch top intent", "intent", top)

	switch top {
	case IntentAccountPassword:
		return r.accountPassword(ctx, dc)
	case IntentSupportTicket:
		return r.supportTicket(ctx, dc)
	default:
		return r.unknownIntent(ctx, turn, top), nil
	}
}

func (r *Router) accountPassword(ctx context.Context, dc *dialog.Context) (dialog.Result, error) {
	turn := dc.Turn
	res, ok := r.recognize(ctx, turn, recognizer.AppAccountPassword)
	if !ok {
		return dialog.Result{Status: dialog.StatusEmpty}, nil
	}
	top := recognizer.TopIntent(&res, "None", accountPasswordMinScore)
	turn.Logger.DebugContext(ctx, "account password top intent", "intent", top)

	switch {
	case strings.HasPrefix(top, infoIntentPrefix):
		return dc.Begin(ctx, dialogs.FAQDialogID, res)
	case top == IntentPasswordExpiration, top == IntentAccountLocked, top == IntentChangePassword:
		return dc.Begin(ctx, dialogs.PasswordResetDialogID, res)
	default:
		return r.unknownIntent(ctx, turn, top), nil
	}
}

func (r *Router) supportTicket(ctx context.Context, dc *dialog.Context) (dialog.Result, error) {
	turn := dc.Turn
	res, ok := r.recognize(ctx, turn, recognizer.AppSupportTicket)
	if !ok {
		return dialog.Result{Status: dialog.StatusEmpty}, nil
	}
	top := recognizer.TopIntent(&res, "", 0)
	turn.Logger.DebugContext(ctx, "support ticket top intent", "intent", top)

	switch top {
	case IntentQuerySupportTickets:
		return dc.Begin(ctx, dialogs.QueryTicketsDialogID, res)
	case IntentNewSupportTicket:
		return dc.Begin(ctx, dialogs.NewTicketDialogID, res)
	case IntentSupportDelay:
		turn.SendText(top)
		return dialog.Result{Status: dialog.StatusEmpty}, nil
	default:
		return r.unknownIntent(ctx, turn, top), nil
	}
}

// recognize classifies the turn text with app. A failure is logged and
// answered with the could-not-understand text; ok is false then.
func (r *Router) recognize(ctx context.Context, turn *dialog.TurnContext, app recognizer.App) (recognizer.RecognizerResult, bool) {
	res, err := r.recognizers.Get(app).Recognize(ctx, turn.Activity.Text)
	if err != nil {
		turn.Logger.ErrorContext(ctx, "recognition failed", "app", app.String(), "error", err)
		turn.SendText(r.catalog.Generic.CouldNotUnderstand)
		return res, false
	}
	return res, true
}

func (r *Router) unknownIntent(ctx context.Context, turn *dialog.TurnContext, intent string) dialog.Result {
	turn.Logger.WarnContext(ctx, "unknown intent", "intent", intent, "text", turn.Activity.Text)
	turn.SendText(r.catalog.Generic.CouldNotUnderstand)
	return dialog.Result{Status: dialog.StatusEmpty}
}

func (r *Router) onConversationUpdate(ctx context.Context, turn *dialog.TurnContext) {
	a := turn.Activity
	if len(a.MembersAdded) == 0 || a.MembersAdded[0].ID == a.Recipient.ID {
		return
	}
	r.track(ctx, turn, telemetry.ConversationStarted)
	turn.Logger.DebugContext(ctx, "sending welcome card")
	turn.Send(domain.Activity{Attachments: []domain.Attachment{r.catalog.WelcomeCard()}})
}

func (r *Router) track(ctx context.Context, turn *dialog.TurnContext, name string) {
	r.telemetry.Track(ctx, telemetry.Event{
		Name:           name,
		ConversationID: turn.ConversationID(),
		ActivityID:     turn.ActivityID(),
	})
}

// describe renders a turn result for logs.
func describe(res dialog.Result) string {
	if res.Value == nil {
		return res.Status.String()
	}
	return fmt.Sprintf("%s(%T)", res.Status, res.Value)
}
