package dialogs

import (
	"context"

	"service-desk-bot/internal/dialog"
)

func (f *flows) goodbyeDialog() dialog.Dialog {
	return dialog.NewWaterfall(GoodbyeDialogID,
		func(ctx context.Context, step *dialog.Step) (dialog.Result, error) {
			return step.Prompt(ctx, anythingElsePromptID, dialog.PromptOptions{Prompt: f.Catalog.Generic.NeedAnythingElse})
		},
		func(ctx context.Context, step *dialog.Step) (dialog.Result, error) {
			if yes, _ := step.Result.(bool); yes {
				step.Turn().SendText(f.Catalog.Generic.IAmAvailable)
			} else {
				step.Turn().SendText(f.Catalog.Generic.Thanks)
			}
			return step.End(ctx, dialog.Goodbye{})
		},
	)
}
