package dialogs

import (
	"context"

	"service-desk-bot/internal/dialog"
	"service-desk-bot/internal/responder"
	"service-desk-bot/internal/telemetry"
)

// authDialog signs the user in and stores their profile. It ends with true
// on success.
func (f *flows) authDialog() dialog.Dialog {
	return dialog.NewWaterfall(AuthDialogID,
		f.authPrompt,
		f.authProcess,
	)
}

func (f *flows) authPrompt(ctx context.Context, step *dialog.Step) (dialog.Result, error) {
	f.track(ctx, step.Turn(), telemetry.LoginStart)
	return step.Begin(ctx, loginPromptID, nil)
}

func (f *flows) authProcess(ctx context.Context, step *dialog.Step) (dialog.Result, error) {
	turn := step.Turn()
	if token, _ := step.Result.(*dialog.Token); token != nil && token.Token != "" {
		me, err := f.Graph.Me(ctx, token.Token)
		if err == nil {
			if err := Profile.Set(turn.User, me); err != nil {
				return dialog.Result{}, err
			}
			turn.SendText(responder.Format(f.Catalog.Auth.Hello, "displayName", me.DisplayName))
			f.track(ctx, turn, telemetry.LoginSuccess)
			return step.End(ctx, true)
		}
		turn.Logger.ErrorContext(ctx, "read signed-in profile failed", "error", err)
	}
	turn.SendText(f.Catalog.Auth.Failure)
	f.track(ctx, turn, telemetry.LoginFailure)
	return step.End(ctx, false)
}
