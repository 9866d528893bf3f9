// Package dialogs implements the conversation flows of the service desk:
// account and password FAQ, password reset, support ticket creation and
// lookup, sign-in and goodbye.
package dialogs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"service-desk-bot/internal/dialog"
	"service-desk-bot/internal/domain"
	"service-desk-bot/internal/integrations/qnamaker"
	"service-desk-bot/internal/recognizer"
	"service-desk-bot/internal/responder"
	"service-desk-bot/internal/state"
	"service-desk-bot/internal/telemetry"
)

// Dialog ids.
const (
	FAQDialogID           = "AccountPasswordFaqDialog"
	PasswordResetDialogID = "PasswordResetDialog"
	NewTicketDialogID     = "NewSupportTicketDialog"
	QueryTicketsDialogID  = "QuerySupportTicketsDialog"
	AuthDialogID          = "AuthDialog"
	GoodbyeDialogID       = "GoodbyeDialog"
)

// Prompt ids.
const (
	faqConfirmPromptID      = "faqRedirectConfirmPrompt"
	userIDPromptID          = "UserIdPrompt"
	magicCodePromptID       = "MagicCodeValidationPrompt"
	problemPromptID         = "ProblemStatementPrompt"
	continueTicketPromptID  = "continueOpeningTicketPrompt"
	loginPromptID           = "LoginPrompt"
	anythingElsePromptID    = "needAnythingElsePrompt"
	defaultLoginPromptTitle = "Login"
)

// Profile is the user profile kept in user state.
var Profile = state.NewProperty[domain.UserProfile]("userProfile")

// FAQSource answers account and password questions.
type FAQSource interface {
	GenerateAnswer(ctx context.Context, question string, top int) ([]qnamaker.Answer, error)
}

// Directory looks users up and resets their passwords.
type Directory interface {
	GetUserByID(ctx context.Context, userID string) (*domain.UserProfile, error)
	ChangePassword(ctx context.Context, profile domain.UserProfile, password string) error
}

// SMSSender delivers text messages.
type SMSSender interface {
	Send(ctx context.Context, message, phone string) error
}

// KnowledgeBase finds known solutions for a problem statement.
type KnowledgeBase interface {
	Search(ctx context.Context, problem string, top int) ([]qnamaker.Answer, error)
}

// Tickets is the ticket service.
type Tickets interface {
	Open(ctx context.Context, description, userID string) (string, error)
	QueryByStatusAndUser(ctx context.Context, userID string, status domain.TicketStatus) ([]domain.SupportTicket, error)
	GetByIDAndUser(ctx context.Context, id, userID string) (*domain.SupportTicket, error)
	GetLastByUser(ctx context.Context, userID string) (*domain.SupportTicket, error)
}

// ProfileReader reads the profile of a signed-in user.
type ProfileReader interface {
	Me(ctx context.Context, token string) (domain.UserProfile, error)
}

// Deps are the collaborators of the flows.
type Deps struct {
	Catalog     *responder.Catalog
	Telemetry   telemetry.Tracker
	Recognizers *recognizer.Registry
	FAQ         FAQSource
	Directory   Directory
	SMS         SMSSender
	KB          KnowledgeBase
	Tickets     Tickets
	Tokens      dialog.TokenProvider
	Graph       ProfileReader
	// OAuth configures the sign-in card. Text and Title default to the catalog.
	OAuth dialog.OAuthSettings
	// Now is used to check token expiry. Defaults to time.Now.
	Now func() time.Time
}

func (d Deps) validate() error {
	switch {
	case d.Catalog == nil:
		return errors.New("dialogs: catalog must not be nil")
	case d.Telemetry == nil:
		return errors.New("dialogs: telemetry must not be nil")
	case d.Recognizers == nil:
		return errors.New("dialogs: recognizers must not be nil")
	case d.FAQ == nil:
		return errors.New("dialogs: faq source must not be nil")
	case d.Directory == nil:
		return errors.New("dialogs: directory must not be nil")
	case d.SMS == nil:
		return errors.New("dialogs: sms sender must not be nil")
	case d.KB == nil:
		return errors.New("dialogs: knowledge base must not be nil")
	case d.Tickets == nil:
		return errors.New("dialogs: tickets must not be nil")
	case d.Tokens == nil:
		return errors.New("dialogs: token provider must not be nil")
	case d.Graph == nil:
		return errors.New("dialogs: profile reader must not be nil")
	}
	return nil
}

type flows struct {
	Deps
}

// NewSet builds the dialog set holding every flow and the prompts they use.
func NewSet(d Deps) (*dialog.Set, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.OAuth.Text == "" {
		d.OAuth.Text = d.Catalog.Auth.Prompt
	}
	if d.OAuth.Title == "" {
		d.OAuth.Title = d.Catalog.Auth.Title
	}
	if d.OAuth.Title == "" {
		d.OAuth.Title = defaultLoginPromptTitle
	}
	f := &flows{Deps: d}

	return dialog.NewSet(
		f.faqDialog(),
		dialog.NewConfirmPrompt(faqConfirmPromptID, nil),

		f.passwordResetDialog(),
		dialog.NewTextPrompt(userIDPromptID, f.validateUserID),
		dialog.NewNumberPrompt(magicCodePromptID, f.validateMagicCode),

		f.newTicketDialog(),
		dialog.NewTextPrompt(problemPromptID, f.validateProblem),
		dialog.NewConfirmPrompt(continueTicketPromptID, nil),

		f.queryTicketsDialog(),

		f.authDialog(),
		dialog.NewOAuthPrompt(loginPromptID, d.Tokens, d.OAuth),

		f.goodbyeDialog(),
		dialog.NewConfirmPrompt(anythingElsePromptID, acceptAny),
	)
}

func (f *flows) track(ctx context.Context, turn *dialog.TurnContext, name string) {
	f.Telemetry.Track(ctx, telemetry.Event{
		Name:           name,
		ConversationID: turn.ConversationID(),
		ActivityID:     turn.ActivityID(),
	})
}

// recognizerOptions returns the recognizer result the dialog was started
// with. Without entities the utterance is recognized again with app.
func (f *flows) recognizerOptions(ctx context.Context, step *dialog.Step, app recognizer.App) (recognizer.RecognizerResult, error) {
	var res recognizer.RecognizerResult
	if _, err := step.Options(&res); err != nil {
		return res, err
	}
	if res.HasEntities() {
		return res, nil
	}
	text := res.Text
	if text == "" {
		text = step.Turn().Activity.Text
	}
	out, err := f.Recognizers.Get(app).Recognize(ctx, text)
	if err != nil {
		return out, fmt.Errorf("dialogs: recognize with %s: %w", app, err)
	}
	return out, nil
}

// userPrincipal is the id the ticket service knows the user by.
func userPrincipal(p domain.UserProfile) string {
	if p.UserPrincipalName != "" {
		return p.UserPrincipalName
	}
	return p.UserID
}

// authenticated reports whether the stored profile carries a usable token.
func (f *flows) authenticated(turn *dialog.TurnContext) (bool, error) {
	profile, err := Profile.Get(turn.User, domain.UserProfile{})
	if err != nil {
		return false, err
	}
	return tokenValid(profile.AuthToken, f.Now()), nil
}

// entityText returns the first value of entity name as text. Numbers are
// written without a fractional part when they have none.
func entityText(res *recognizer.RecognizerResult, name string) string {
	if res == nil || res.Entities == nil {
		return ""
	}
	for _, v := range res.Entities.Values[name] {
		switch t := v.(type) {
		case string:
			if t != "" {
				return t
			}
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		}
	}
	return ""
}

func acceptAny(context.Context, *dialog.PromptContext[bool]) (bool, error) {
	return true, nil
}
