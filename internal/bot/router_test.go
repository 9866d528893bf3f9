package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"service-desk-bot/internal/dialog"
	"service-desk-bot/internal/dialogs"
	"service-desk-bot/internal/domain"
	"service-desk-bot/internal/recognizer"
	"service-desk-bot/internal/responder"
	"service-desk-bot/internal/state"
	"service-desk-bot/internal/telemetry"
)

type fakeRecognizer struct {
	results map[string]recognizer.RecognizerResult
	err     error
}

func (f *fakeRecognizer) Recognize(_ context.Context, text string) (recognizer.RecognizerResult, error) {
	if f.err != nil {
		return recognizer.RecognizerResult{}, f.err
	}
	return f.results[text], nil
}

func intents(scores map[string]float64) recognizer.RecognizerResult {
	out := recognizer.RecognizerResult{
		Intents:  make(map[string]recognizer.IntentScore, len(scores)),
		Entities: &recognizer.Entities{Values: map[string][]any{}},
	}
	for name, score := range scores {
		out.Intents[name] = recognizer.IntentScore{Score: score}
	}
	return out
}

const (
	stubText    = "stubText"
	stubConfirm = "stubConfirm"
)

// stubDialogs registers minimal flows under the real dialog ids.
func stubDialogs(t *testing.T, faqOptions *recognizer.RecognizerResult) *dialog.Set {
	t.Helper()
	set, err := dialog.NewSet(
		dialog.NewTextPrompt(stubText, nil),
		dialog.NewConfirmPrompt(stubConfirm, nil),
		dialog.NewWaterfall(dialogs.FAQDialogID,
			func(ctx context.Context, s *dialog.Step) (dialog.Result, error) {
				if _, err := s.Options(faqOptions); err != nil {
					return dialog.Result{}, err
				}
				s.Turn().SendText("faq")
				return s.Prompt(ctx, stubConfirm, dialog.PromptOptions{Prompt: "reset?"})
			},
			func(ctx context.Context, s *dialog.Step) (dialog.Result, error) {
				if yes, _ := s.Result.(bool); yes {
					return s.End(ctx, dialog.Redirect{To: dialogs.PasswordResetDialogID})
				}
				return s.End(ctx, nil)
			},
		),
		dialog.NewWaterfall(dialogs.PasswordResetDialogID,
			func(ctx context.Context, s *dialog.Step) (dialog.Result, error) {
				s.Turn().SendText("reset")
				return s.Prompt(ctx, stubText, dialog.PromptOptions{Prompt: "user id?"})
			},
		),
		dialog.NewWaterfall(dialogs.NewTicketDialogID,
			func(ctx context.Context, s *dialog.Step) (dialog.Result, error) {
				s.Turn().SendText("new ticket")
				return s.Prompt(ctx, stubText, dialog.PromptOptions{Prompt: "problem?"})
			},
		),
		dialog.NewWaterfall(dialogs.QueryTicketsDialogID,
			func(ctx context.Context, s *dialog.Step) (dialog.Result, error) {
				s.Turn().SendText("query")
				return s.End(ctx, nil)
			},
		),
		dialog.NewWaterfall(dialogs.GoodbyeDialogID,
			func(ctx context.Context, s *dialog.Step) (dialog.Result, error) {
				return s.Prompt(ctx, stubConfirm, dialog.PromptOptions{Prompt: "anything else?"})
			},
			func(ctx context.Context, s *dialog.Step) (dialog.Result, error) {
				s.Turn().SendText("bye")
				return s.End(ctx, dialog.Goodbye{})
			},
		),
	)
	require.NoError(t, err)
	return set
}

type harness struct {
	t          *testing.T
	router     *Router
	catalog    *responder.Catalog
	events     *telemetry.Recorder
	dispatch   *fakeRecognizer
	account    *fakeRecognizer
	support    *fakeRecognizer
	conv       *state.Bag
	user       *state.Bag
	faqOptions recognizer.RecognizerResult
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	catalog, err := responder.Default()
	require.NoError(t, err)

	h := &harness{
		t:        t,
		catalog:  catalog,
		events:   &telemetry.Recorder{},
		dispatch: &fakeRecognizer{results: map[string]recognizer.RecognizerResult{}},
		account:  &fakeRecognizer{results: map[string]recognizer.RecognizerResult{}},
		support:  &fakeRecognizer{results: map[string]recognizer.RecognizerResult{}},
		conv:     state.NewMemoryBag(),
		user:     state.NewMemoryBag(),
	}
	registry, err := recognizer.NewRegistry(map[recognizer.App]recognizer.Recognizer{
		recognizer.AppDispatch:          h.dispatch,
		recognizer.AppAccountPassword:   h.account,
		recognizer.AppSupportTicket:     h.support,
		recognizer.AppSupportKBDispatch: &fakeRecognizer{},
	})
	require.NoError(t, err)

	h.router, err = NewRouter(stubDialogs(t, &h.faqOptions), catalog, registry, h.events)
	require.NoError(t, err)
	return h
}

func (h *harness) send(a domain.Activity) (dialog.Result, []domain.Activity) {
	h.t.Helper()
	turn := dialog.NewTurnContext(a, h.conv, h.user, nil)
	res, err := h.router.OnTurn(context.Background(), turn)
	require.NoError(h.t, err)
	return res, turn.Replies()
}

func (h *harness) say(text string) (dialog.Result, []domain.Activity) {
	return h.send(domain.Activity{
		Type:         domain.ActivityMessage,
		ID:           "act-1",
		Text:         text,
		Conversation: domain.ConversationAccount{ID: "conv-1"},
		From:         domain.ChannelAccount{ID: "user-1"},
		Recipient:    domain.ChannelAccount{ID: "bot"},
	})
}

func (h *harness) routeSupport(text, intent string) {
	h.dispatch.results[text] = intents(map[string]float64{IntentSupportTicket: 0.9, IntentAccountPassword: 0.1})
	h.support.results[text] = intents(map[string]float64{intent: 0.8})
}

func (h *harness) routeAccount(text, intent string, score float64) {
	h.dispatch.results[text] = intents(map[string]float64{IntentAccountPassword: 0.9})
	h.account.results[text] = intents(map[string]float64{intent: score})
}

func (h *harness) stackDepth() int {
	var stack []*dialog.Frame
	_, err := h.conv.Get(dialog.StackProperty, &stack)
	require.NoError(h.t, err)
	return len(stack)
}

func texts(replies []domain.Activity) []string {
	out := make([]string, 0, len(replies))
	for _, r := range replies {
		out = append(out, r.Text)
	}
	return out
}

func TestNewRouter_ValidatesDependencies(t *testing.T) {
	_, err := NewRouter(nil, nil, nil, nil)
	require.Error(t, err)
}

func TestCancel_NothingToCancelTwice(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 2; i++ {
		res, replies := h.say("Cancelar")
		require.Equal(t, dialog.StatusEmpty, res.Status)
		require.Equal(t, []string{h.catalog.Cancellation.NothingToCancel}, texts(replies))
	}
	require.Equal(t, []string{telemetry.Cancel, telemetry.Cancel}, h.events.Names())
}

func TestCancel_ClearsActiveDialog(t *testing.T) {
	h := newHarness(t)
	h.routeSupport("abrir chamado", IntentNewSupportTicket)

	_, replies := h.say("abrir chamado")
	require.Equal(t, []string{"new ticket", "problem?"}, texts(replies))
	require.Equal(t, 2, h.stackDepth())

	res, replies := h.say("cancelar")
	require.Equal(t, dialog.StatusCancelled, res.Status)
	require.Equal(t, []string{h.catalog.Cancellation.Cancelled}, texts(replies))
	require.Zero(t, h.stackDepth())
}

func TestDispatch_AccountInfoIntentStartsFAQWithResults(t *testing.T) {
	h := newHarness(t)
	h.routeAccount("minha senha expirou", "INFO_PASSWORD_EXPIRATION", 0.7)

	res, replies := h.say("minha senha expirou")
	require.Equal(t, dialog.StatusWaiting, res.Status)
	require.Equal(t, []string{"faq", "reset? (1) Sim ou (2) Não"}, texts(replies))
	require.Equal(t, "INFO_PASSWORD_EXPIRATION", recognizer.TopIntent(&h.faqOptions, "", 0))
}

func TestRedirect_BeginsTargetDialog(t *testing.T) {
	h := newHarness(t)
	h.routeAccount("minha senha expirou", "INFO_PASSWORD_EXPIRATION", 0.7)
	h.say("minha senha expirou")

	res, replies := h.say("sim")
	require.Equal(t, dialog.StatusWaiting, res.Status)
	require.Equal(t, []string{"reset", "user id?"}, texts(replies))
}

func TestCompletion_StartsGoodbyeUnlessGoodbyeResult(t *testing.T) {
	h := newHarness(t)
	h.routeAccount("minha senha expirou", "INFO_PASSWORD_EXPIRATION", 0.7)
	h.say("minha senha expirou")

	res, replies := h.say("não")
	require.Equal(t, dialog.StatusWaiting, res.Status)
	require.Equal(t, []string{"anything else? (1) Sim ou (2) Não"}, texts(replies))

	res, replies = h.say("não")
	require.Equal(t, dialog.StatusComplete, res.Status)
	require.Equal(t, dialog.Goodbye{}, res.Value)
	require.Equal(t, []string{"bye"}, texts(replies))
	require.Zero(t, h.stackDepth())
}

func TestDispatch_PasswordIntents(t *testing.T) {
	for _, intent := range []string{IntentPasswordExpiration, IntentAccountLocked, IntentChangePassword} {
		t.Run(intent, func(t *testing.T) {
			h := newHarness(t)
			h.routeAccount("preciso de ajuda com a senha", intent, 0.5)

			_, replies := h.say("preciso de ajuda com a senha")
			require.Equal(t, []string{"reset", "user id?"}, texts(replies))
		})
	}
}

func TestDispatch_AccountIntentBelowMinimumScore(t *testing.T) {
	h := newHarness(t)
	h.routeAccount("senha", IntentPasswordExpiration, 0.1)

	res, replies := h.say("senha")
	require.Equal(t, dialog.StatusEmpty, res.Status)
	require.Equal(t, []string{h.catalog.Generic.CouldNotUnderstand}, texts(replies))
}

func TestDispatch_SupportIntents(t *testing.T) {
	h := newHarness(t)
	h.routeSupport("meus chamados", IntentQuerySupportTickets)

	res, replies := h.say("meus chamados")
	require.Equal(t, dialog.StatusComplete, res.Status)
	require.Equal(t, []string{"query"}, texts(replies))
	require.Zero(t, h.stackDepth())
}

func TestDispatch_SupportDelayEchoesIntent(t *testing.T) {
	h := newHarness(t)
	h.routeSupport("meu chamado está demorando", IntentSupportDelay)

	_, replies := h.say("meu chamado está demorando")
	require.Equal(t, []string{IntentSupportDelay}, texts(replies))
}

func TestDispatch_UnknownIntent(t *testing.T) {
	h := newHarness(t)
	h.dispatch.results["bom dia"] = intents(map[string]float64{"None": 0.9})

	res, replies := h.say("bom dia")
	require.Equal(t, dialog.StatusEmpty, res.Status)
	require.Equal(t, []string{h.catalog.Generic.CouldNotUnderstand}, texts(replies))
}

func TestDispatch_RecognitionErrorIsAbsorbed(t *testing.T) {
	h := newHarness(t)
	h.dispatch.err = errors.New("luis unavailable")

	res, replies := h.say("abrir chamado")
	require.Equal(t, dialog.StatusEmpty, res.Status)
	require.Equal(t, []string{h.catalog.Generic.CouldNotUnderstand}, texts(replies))
}

func TestConversationUpdate_WelcomesNewMember(t *testing.T) {
	h := newHarness(t)

	_, replies := h.send(domain.Activity{
		Type:         domain.ActivityConversationUpdate,
		ID:           "act-0",
		Conversation: domain.ConversationAccount{ID: "conv-1"},
		Recipient:    domain.ChannelAccount{ID: "bot"},
		MembersAdded: []domain.ChannelAccount{{ID: "user-1"}},
	})
	require.Len(t, replies, 1)
	require.Equal(t, domain.AdaptiveCardContentType, replies[0].Attachments[0].ContentType)
	require.Equal(t, []string{telemetry.ConversationStarted}, h.events.Names())
}

func TestConversationUpdate_IgnoresBotJoining(t *testing.T) {
	h := newHarness(t)

	_, replies := h.send(domain.Activity{
		Type:         domain.ActivityConversationUpdate,
		Conversation: domain.ConversationAccount{ID: "conv-1"},
		Recipient:    domain.ChannelAccount{ID: "bot"},
		MembersAdded: []domain.ChannelAccount{{ID: "bot"}},
	})
	require.Empty(t, replies)
	require.Empty(t, h.events.Names())
}

func TestOtherActivity_WithoutDialogIsIgnored(t *testing.T) {
	h := newHarness(t)

	res, replies := h.send(domain.Activity{
		Type:         domain.ActivityEvent,
		Name:         "typing",
		Conversation: domain.ConversationAccount{ID: "conv-1"},
	})
	require.Equal(t, dialog.StatusEmpty, res.Status)
	require.Empty(t, replies)
}
