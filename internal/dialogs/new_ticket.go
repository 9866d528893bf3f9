package dialogs

import (
	"context"
	"unicode/utf8"

	"service-desk-bot/internal/dialog"
	"service-desk-bot/internal/domain"
	"service-desk-bot/internal/recognizer"
	"service-desk-bot/internal/responder"
	"service-desk-bot/internal/telemetry"
)

const (
	problemEntity = "problem"
	problemKey    = "problem"

	problemMinLength = 11
	kbAnswers        = 3
)

// newTicketDialog signs the user in, collects the problem, shows similar
// known solutions and opens a ticket when the user still wants one.
func (f *flows) newTicketDialog() dialog.Dialog {
	return dialog.NewWaterfall(NewTicketDialogID,
		f.authGate(telemetry.SupportTicketStart),
		f.ticketCheckProblem,
		f.ticketPromptProblem,
		f.ticketSearchSolutions,
		f.ticketOpen,
	)
}

// authGate begins the auth flow unless the stored token is still valid. The
// next step receives true once the user is signed in.
func (f *flows) authGate(event string) dialog.StepFunc {
	return func(ctx context.Context, step *dialog.Step) (dialog.Result, error) {
		turn := step.Turn()
		f.track(ctx, turn, event)
		ok, err := f.authenticated(turn)
		if err != nil {
			return dialog.Result{}, err
		}
		if !ok {
			return step.Begin(ctx, AuthDialogID, nil)
		}
		return step.Next(ctx, true)
	}
}

func (f *flows) ticketCheckProblem(ctx context.Context, step *dialog.Step) (dialog.Result, error) {
	if signedIn, _ := step.Result.(bool); !signedIn {
		return step.End(ctx, nil)
	}
	res, err := f.recognizerOptions(ctx, step, recognizer.AppSupportTicket)
	if err != nil {
		return dialog.Result{}, err
	}
	return step.Next(ctx, entityText(&res, problemEntity))
}

func (f *flows) ticketPromptProblem(ctx context.Context, step *dialog.Step) (dialog.Result, error) {
	problem, _ := step.Result.(string)
	if problem == "" {
		return step.Prompt(ctx, problemPromptID, dialog.PromptOptions{
			Prompt: f.Catalog.SupportTicket.ProblemStatementPrompt,
			Retry:  f.Catalog.SupportTicket.ProblemStatementReprompt,
		})
	}
	step.Turn().SendText(responder.Format(f.Catalog.SupportTicket.GotYourProblem, "problem", problem))
	return step.Next(ctx, problem)
}

func (f *flows) validateProblem(_ context.Context, pc *dialog.PromptContext[string]) (bool, error) {
	if !pc.Recognized.Succeeded {
		pc.Turn.SendText(f.Catalog.SupportTicket.ProblemStatementReprompt)
		return false, nil
	}
	if utf8.RuneCountInString(pc.Recognized.Value) < problemMinLength {
		pc.Turn.SendText(f.Catalog.SupportTicket.ProblemStatementTooSmall)
		return false, nil
	}
	return true, nil
}

func (f *flows) ticketSearchSolutions(ctx context.Context, step *dialog.Step) (dialog.Result, error) {
	turn := step.Turn()
	problem, _ := step.Result.(string)
	text := f.Catalog.SupportTicket

	turn.SendText(responder.Format(text.LookingForSolutions, "problem", problem))
	if err := step.SetValue(problemKey, problem); err != nil {
		return dialog.Result{}, err
	}

	answers, err := f.KB.Search(ctx, problem, kbAnswers)
	if err != nil {
		turn.Logger.ErrorContext(ctx, "search for solutions failed", "error", err)
		answers = nil
	}
	if len(answers) == 0 {
		turn.SendText(text.NoAnswerFound)
		f.track(ctx, turn, telemetry.NoSimilarSolutionFound)
		return step.Next(ctx, true)
	}

	f.track(ctx, turn, telemetry.ShowSimilarSolutions)
	cards := make([]domain.Attachment, 0, len(answers))
	for i, a := range answers {
		cards = append(cards, f.Catalog.KBCard(i+1, a.Text))
	}
	turn.Send(domain.Carousel(cards))
	return step.Prompt(ctx, continueTicketPromptID, dialog.PromptOptions{Prompt: text.ContinueOpeningTicket})
}

func (f *flows) ticketOpen(ctx context.Context, step *dialog.Step) (dialog.Result, error) {
	turn := step.Turn()
	if proceed, _ := step.Result.(bool); !proceed {
		f.track(ctx, turn, telemetry.StopTicketCreation)
		return step.End(ctx, nil)
	}

	var problem string
	if _, err := step.Value(problemKey, &problem); err != nil {
		return dialog.Result{}, err
	}
	profile, err := Profile.Get(turn.User, domain.UserProfile{})
	if err != nil {
		return dialog.Result{}, err
	}

	id, err := f.Tickets.Open(ctx, problem, userPrincipal(profile))
	if err != nil {
		turn.Logger.ErrorContext(ctx, "open ticket failed", "error", err)
		turn.SendText(f.Catalog.SupportTicket.TicketOpenFailed)
		return step.End(ctx, nil)
	}
	turn.SendText(responder.Format(f.Catalog.SupportTicket.TicketCreated, "ticketId", id))
	f.track(ctx, turn, telemetry.ContinueCreatingTicket)
	return step.End(ctx, nil)
}
