package dialogs

import (
	"context"
	"fmt"
	"strconv"
	"unicode/utf8"

	"service-desk-bot/internal/dialog"
	"service-desk-bot/internal/domain"
	"service-desk-bot/internal/recognizer"
	"service-desk-bot/internal/responder"
	"service-desk-bot/internal/telemetry"
)

const (
	userIDEntity = "user_id"
	magicCodeKey = "magicCode"

	userIDMinLength = 3
	userIDMaxLength = 50
)

// passwordResetOptions are the options of the password reset flow. Restart
// asks for the user id again, ignoring entities and the stored profile.
type passwordResetOptions struct {
	recognizer.RecognizerResult
	Restart bool `json:"restart,omitempty"`
}

// passwordResetDialog identifies the user, authenticates them with a code
// sent by SMS and sends a new password the same way.
func (f *flows) passwordResetDialog() dialog.Dialog {
	return dialog.NewWaterfall(PasswordResetDialogID,
		f.resetCheckUserID,
		f.resetPromptUserID,
		f.resetLookupUser,
		f.resetStoreProfile,
		f.resetSendCode,
		f.resetChangePassword,
	)
}

func (f *flows) resetCheckUserID(ctx context.Context, step *dialog.Step) (dialog.Result, error) {
	turn := step.Turn()
	f.track(ctx, turn, telemetry.PasswordResetStart)

	var opts passwordResetOptions
	if _, err := step.Options(&opts); err != nil {
		return dialog.Result{}, err
	}
	if opts.Restart {
		return step.Next(ctx, "")
	}

	res := opts.RecognizerResult
	if !res.HasEntities() {
		var err error
		res, err = f.Recognizers.Get(recognizer.AppAccountPassword).Recognize(ctx, turn.Activity.Text)
		if err != nil {
			return dialog.Result{}, fmt.Errorf("dialogs: recognize user id: %w", err)
		}
	}

	profile, err := Profile.Get(turn.User, domain.UserProfile{})
	if err != nil {
		return dialog.Result{}, err
	}
	if userID := entityText(&res, userIDEntity); userID != "" {
		profile.UserID = userID
		if err := Profile.Set(turn.User, profile); err != nil {
			return dialog.Result{}, err
		}
		return step.Next(ctx, userID)
	}
	return step.Next(ctx, profile.UserID)
}

func (f *flows) resetPromptUserID(ctx context.Context, step *dialog.Step) (dialog.Result, error) {
	if userID, _ := step.Result.(string); userID != "" {
		return step.Next(ctx, userID)
	}
	return step.Prompt(ctx, userIDPromptID, dialog.PromptOptions{
		Prompt: f.Catalog.PasswordReset.UserIDPrompt,
		Retry:  f.Catalog.PasswordReset.UserIDReprompt,
	})
}

func (f *flows) validateUserID(_ context.Context, pc *dialog.PromptContext[string]) (bool, error) {
	text := f.Catalog.PasswordReset
	if !pc.Recognized.Succeeded {
		pc.Turn.SendText(text.UserIDReprompt)
		return false, nil
	}
	switch n := utf8.RuneCountInString(pc.Recognized.Value); {
	case n < userIDMinLength:
		pc.Turn.SendText(responder.Format(text.UserIDTooSmall, "min", strconv.Itoa(userIDMinLength)))
		return false, nil
	case n > userIDMaxLength:
		pc.Turn.SendText(responder.Format(text.UserIDTooBig, "max", strconv.Itoa(userIDMaxLength)))
		return false, nil
	}
	return true, nil
}

func (f *flows) resetLookupUser(ctx context.Context, step *dialog.Step) (dialog.Result, error) {
	turn := step.Turn()
	userID, _ := step.Result.(string)

	profile, err := f.Directory.GetUserByID(ctx, userID)
	if err != nil {
		return dialog.Result{}, fmt.Errorf("dialogs: look up user: %w", err)
	}
	if profile == nil {
		turn.Logger.InfoContext(ctx, "user not found", "user_id", userID)
		turn.SendText(f.Catalog.PasswordReset.UserIDNotFound)
		return step.Replace(ctx, PasswordResetDialogID, passwordResetOptions{Restart: true})
	}
	if profile.MobilePhone == "" {
		turn.Logger.InfoContext(ctx, "user has no mobile phone", "user_id", userID)
		turn.SendText(f.Catalog.PasswordReset.MobileNotFound)
		return step.End(ctx, nil)
	}
	return step.Next(ctx, *profile)
}

func (f *flows) resetStoreProfile(ctx context.Context, step *dialog.Step) (dialog.Result, error) {
	profile, _ := step.Result.(domain.UserProfile)
	if err := Profile.Set(step.Turn().User, profile); err != nil {
		return dialog.Result{}, err
	}
	return step.Next(ctx, profile)
}

func (f *flows) resetSendCode(ctx context.Context, step *dialog.Step) (dialog.Result, error) {
	turn := step.Turn()
	profile, _ := step.Result.(domain.UserProfile)
	text := f.Catalog.PasswordReset

	turn.SendText(responder.Format(text.InformAuth, "mobile", profile.MobilePhone))

	code, err := newMagicCode()
	if err != nil {
		return dialog.Result{}, err
	}
	if err := step.SetValue(magicCodeKey, code); err != nil {
		return dialog.Result{}, err
	}
	if err := f.SMS.Send(ctx, responder.Format(text.SMSCode, "code", strconv.Itoa(code)), profile.MobilePhone); err != nil {
		turn.Logger.ErrorContext(ctx, "send code by sms failed", "error", err)
		turn.SendText(text.SMSFailed)
		return step.End(ctx, nil)
	}
	return step.Prompt(ctx, magicCodePromptID, dialog.PromptOptions{
		Prompt: text.MagicCodePrompt,
		Retry:  text.InvalidMagicCode,
	})
}

// validateMagicCode compares the reply with the code stored by the password
// reset flow that owns the prompt.
func (f *flows) validateMagicCode(_ context.Context, pc *dialog.PromptContext[float64]) (bool, error) {
	if pc.Recognized.Succeeded && pc.Owner != nil {
		var code int
		ok, err := pc.Owner.Value(magicCodeKey, &code)
		if err != nil {
			return false, err
		}
		if ok && pc.Recognized.Value == float64(code) {
			return true, nil
		}
	}
	pc.Turn.SendText(f.Catalog.PasswordReset.InvalidMagicCode)
	return false, nil
}

func (f *flows) resetChangePassword(ctx context.Context, step *dialog.Step) (dialog.Result, error) {
	turn := step.Turn()
	step.Context().Active().DeleteValue(magicCodeKey)
	text := f.Catalog.PasswordReset

	profile, err := Profile.Get(turn.User, domain.UserProfile{})
	if err != nil {
		return dialog.Result{}, err
	}
	password, err := newPassword()
	if err != nil {
		return dialog.Result{}, err
	}

	if err := f.Directory.ChangePassword(ctx, profile, password); err != nil {
		turn.Logger.ErrorContext(ctx, "change password failed", "user_id", profile.UserID, "error", err)
		turn.SendText(text.ErrorChangingPassword)
		return step.End(ctx, nil)
	}
	turn.SendText(text.PasswordSent)
	if err := f.SMS.Send(ctx, responder.Format(text.SMSPassword, "password", password), profile.MobilePhone); err != nil {
		turn.Logger.ErrorContext(ctx, "send password by sms failed", "user_id", profile.UserID, "error", err)
	}
	return step.End(ctx, nil)
}
