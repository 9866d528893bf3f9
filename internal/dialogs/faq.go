package dialogs

import (
	"context"

	"service-desk-bot/internal/dialog"
	"service-desk-bot/internal/recognizer"
	"service-desk-bot/internal/telemetry"
)

// Informational intents of the account and password group.
const (
	IntentInfoPasswordExpiration = "INFO_PASSWORD_EXPIRATION"
	IntentInfoAndResetPassword   = "INFO_AND_RESET_PASSWORD"
	IntentInfoAccountLocked      = "INFO_ACCOUNT_LOCKED"
	IntentInfoChangePassword     = "INFO_CHANGE_PASSWORD"
)

var infoEvents = map[string]string{
	IntentInfoPasswordExpiration: telemetry.InfoPasswordExpiration,
	IntentInfoAndResetPassword:   telemetry.InfoAndResetPassword,
	IntentInfoAccountLocked:      telemetry.InfoAccountLocked,
	IntentInfoChangePassword:     telemetry.InfoChangePassword,
}

// faqDialog answers an account or password question and, for the
// informational intents, offers to reset the password.
func (f *flows) faqDialog() dialog.Dialog {
	return dialog.NewWaterfall(FAQDialogID,
		f.faqAnswer,
		f.faqOfferReset,
		f.faqRedirect,
	)
}

func (f *flows) faqAnswer(ctx context.Context, step *dialog.Step) (dialog.Result, error) {
	turn := step.Turn()
	f.track(ctx, turn, telemetry.AccountPassword)

	text := turn.Activity.Text
	answers, err := f.FAQ.GenerateAnswer(ctx, text, 1)
	switch {
	case err != nil:
		turn.Logger.ErrorContext(ctx, "faq answer failed", "text", text, "error", err)
	case len(answers) == 0:
		turn.Logger.InfoContext(ctx, "no faq answer", "text", text)
	}
	if err != nil || len(answers) == 0 {
		turn.SendText(f.Catalog.Generic.CouldNotUnderstand)
		return step.End(ctx, nil)
	}

	turn.SendText(answers[0].Text)
	return step.Next(ctx, nil)
}

func (f *flows) faqOfferReset(ctx context.Context, step *dialog.Step) (dialog.Result, error) {
	var res recognizer.RecognizerResult
	if _, err := step.Options(&res); err != nil {
		return dialog.Result{}, err
	}
	event, ok := infoEvents[recognizer.TopIntent(&res, "", 0)]
	if !ok {
		return step.End(ctx, nil)
	}
	f.track(ctx, step.Turn(), event)
	return step.Prompt(ctx, faqConfirmPromptID, dialog.PromptOptions{Prompt: f.Catalog.FAQ.RedirectToPasswordReset})
}

func (f *flows) faqRedirect(ctx context.Context, step *dialog.Step) (dialog.Result, error) {
	if yes, _ := step.Result.(bool); yes {
		return step.End(ctx, dialog.Redirect{To: PasswordResetDialogID})
	}
	return step.End(ctx, nil)
}
