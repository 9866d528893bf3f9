package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"service-desk-bot/internal/dialog"
	"service-desk-bot/internal/domain"
	"service-desk-bot/internal/responder"
	"service-desk-bot/internal/state"
	"service-desk-bot/internal/telemetry"
)

// Router handles one turn against loaded state.
type Router interface {
	OnTurn(ctx context.Context, turn *dialog.TurnContext) (dialog.Result, error)
}

// StateStore persists conversation and user state and the conversation
// metadata record.
type StateStore interface {
	state.Store
	GetConversationTurnCount(ctx context.Context, conversationID string) (int, error)
	SaveTurn(ctx context.Context, doc domain.StateDocument, meta domain.ConversationMeta) error
	UpsertMeta(ctx context.Context, meta domain.ConversationMeta) error
	NewConversationMeta(conversationID string, turns int) domain.ConversationMeta
}

type TurnService struct {
	router    Router
	store     StateStore
	catalog   *responder.Catalog
	telemetry telemetry.Tracker
	logger    *slog.Logger
}

type TurnInput struct {
	Activity domain.Activity
}

type TurnOutput struct {
	Activities []domain.Activity
}

func NewTurnService(r Router, s StateStore, catalog *responder.Catalog, tracker telemetry.Tracker, logger *slog.Logger) (*TurnService, error) {
	if r == nil {
		return nil, errors.New("usecase: router must not be nil")
	}
	if s == nil {
		return nil, errors.New("usecase: state store must not be nil")
	}
	if catalog == nil {
		return nil, errors.New("usecase: catalog must not be nil")
	}
	if tracker == nil {
		return nil, errors.New("usecase: telemetry must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TurnService{router: r, store: s, catalog: catalog, telemetry: tracker, logger: logger}, nil
}

// Handle runs one turn. Conversation and user state are loaded first and
// saved once the router is done. When the router fails the user gets the
// generic error text and no state is written.
func (s *TurnService) Handle(ctx context.Context, in TurnInput) (TurnOutput, error) {
	a := in.Activity
	if strings.TrimSpace(string(a.Type)) == "" {
		return TurnOutput{}, newError(ErrorInvalidActivity, "missing_type", nil)
	}
	convID := strings.TrimSpace(a.Conversation.ID)
	if convID == "" {
		return TurnOutput{}, newError(ErrorInvalidActivity, "missing_conversation", nil)
	}
	if a.ID == "" {
		a.ID = newUUID()
	}

	conv, err := state.Load(ctx, s.store, state.ConversationKey(convID))
	if err != nil {
		return TurnOutput{}, newError(ErrorInternal, "state_load_error", err)
	}
	user := state.NewMemoryBag()
	if a.From.ID != "" {
		user, err = state.Load(ctx, s.store, state.UserKey(a.From.ID))
		if err != nil {
			return TurnOutput{}, newError(ErrorInternal, "state_load_error", err)
		}
	}

	turn := dialog.NewTurnContext(a, conv, user, s.logger)
	if _, err := s.router.OnTurn(ctx, turn); err != nil {
		turn.Logger.ErrorContext(ctx, "unhandled turn error", "error", err)
		s.telemetry.Track(ctx, telemetry.Event{
			Name:           telemetry.UnhandledError,
			ConversationID: convID,
			ActivityID:     a.ID,
			Properties:     map[string]string{"error": err.Error()},
		})
		turn.SendText(s.catalog.UnexpectedError(a.ID))
		return TurnOutput{Activities: turn.Replies()}, nil
	}

	if err := s.save(ctx, convID, conv, user); err != nil {
		return TurnOutput{}, newError(ErrorInternal, "state_save_error", err)
	}
	return TurnOutput{Activities: turn.Replies()}, nil
}

// save writes the conversation document together with its metadata and
// then the user document. Unchanged documents are not written.
func (s *TurnService) save(ctx context.Context, convID string, conv, user *state.Bag) error {
	turns, err := s.store.GetConversationTurnCount(ctx, convID)
	if err != nil {
		return err
	}
	meta := s.store.NewConversationMeta(convID, turns+1)
	if conv.Changed() {
		err = conv.SaveChangesWith(ctx, func(ctx context.Context, _ string, doc domain.StateDocument) error {
			return s.store.SaveTurn(ctx, doc, meta)
		})
	} else {
		err = s.store.UpsertMeta(ctx, meta)
	}
	if err != nil {
		return err
	}
	return user.SaveChanges(ctx)
}

var newUUID = func() string {
	return uuid.NewString()
}
