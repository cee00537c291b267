// Package bot implements the conversational state machine over the card
// database: navigation, the card builder, and the admin sub-machine.
package bot

import (
	"context"
	"strings"

	"churchbot/internal/app"
	"churchbot/internal/auth"
	"churchbot/internal/cache"
	"churchbot/internal/session"

	"github.com/rs/zerolog/log"
)

// Event is one inbound interaction: either a plain text message or an
// interactive action token with the originating message reference.
type Event struct {
	ChatID     int64
	From       auth.UserInfo
	Text       string
	Callback   string // action token; empty for text messages
	CallbackID string // acknowledgment handle for the action
	MessageID  int    // message to edit when responding to an action
}

// Button is one interactive choice.
type Button struct {
	Label string
	Data  string
}

// Message is an outbound render.
type Message struct {
	Text     string
	Keyboard [][]Button
	HTML     bool
}

// Messenger is the narrow transport contract the state machine renders
// through.
type Messenger interface {
	Send(ctx context.Context, chatID int64, msg Message) error
	Edit(ctx context.Context, chatID int64, messageID int, msg Message) error
	AckCallback(ctx context.Context, callbackID string) error
	// ChatInfo resolves a user id to profile fields, used by /admin add.
	ChatInfo(ctx context.Context, userID int64) (auth.UserInfo, error)
}

// Bot wires the state machine to its collaborators. One instance serves all
// conversations; per-chat state lives in the session store.
type Bot struct {
	store    *cache.Store
	auth     *auth.Manager
	sessions session.Store
	msgr     Messenger
	cfg      *app.Config
}

func New(store *cache.Store, authMgr *auth.Manager, sessions session.Store, msgr Messenger, cfg *app.Config) *Bot {
	return &Bot{
		store:    store,
		auth:     authMgr,
		sessions: sessions,
		msgr:     msgr,
		cfg:      cfg,
	}
}

// HandleEvent is the single entry point for inbound events. No error escapes
// it: every failure degrades to a user-visible message and a safe state.
func (b *Bot) HandleEvent(ctx context.Context, ev *Event) {
	if ev.CallbackID != "" {
		// Best effort: an expired action reference must not stop the render.
		if err := b.msgr.AckCallback(ctx, ev.CallbackID); err != nil {
			log.Warn().Err(err).Msg("Failed to answer callback query")
		}
	}

	if !b.auth.CheckAccess(ctx, ev.From.ID, ev.From) {
		b.sendDenied(ctx, ev)
		return
	}

	sess, err := b.sessions.Get(ctx, ev.ChatID)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", ev.ChatID).Msg("Session load failed")
		sess = session.New()
	}
	sess.UserID = ev.From.ID

	if ev.Callback != "" {
		log.Info().Int64("chat_id", ev.ChatID).Str("data", ev.Callback).Msg("Callback received")
		b.handleCallback(ctx, ev, sess)
		return
	}

	log.Info().Int64("user_id", ev.From.ID).Str("text", ev.Text).Msg("Message received")
	b.handleText(ctx, ev, sess)
}

func (b *Bot) handleText(ctx context.Context, ev *Event, sess *session.Session) {
	text := ev.Text

	if strings.HasPrefix(text, "/admin") {
		if !b.auth.IsAdmin(ctx, ev.From.ID) {
			b.reply(ctx, ev, Message{Text: "❌ У вас нет прав администратора."})
			return
		}
		b.handleAdminCommand(ctx, ev, text)
		return
	}

	if text == "/start" || text == "/menu" || text == "В главное меню" {
		b.clearSession(ctx, ev.ChatID)
		b.sendMainMenu(ctx, ev)
		return
	}

	switch sess.State {
	case session.StateIdle:
		b.handleIdleText(ctx, ev, sess, text)
	case session.StateAdminMenu:
		b.handleAdminMenuText(ctx, ev, text)
	case session.StateSelectingLetter:
		b.handleLetterText(ctx, ev, text)
	case session.StateSelectingPerson:
		b.handlePersonText(ctx, ev, sess, text)
	case session.StateViewingCard:
		b.handleViewingText(ctx, ev, sess, text)
	case session.StateBuilderMode:
		b.handleBuilderText(ctx, ev, sess, text)
	default:
		b.clearSession(ctx, ev.ChatID)
		b.sendMainMenu(ctx, ev)
	}
}

func (b *Bot) handleCallback(ctx context.Context, ev *Event, sess *session.Session) {
	data := ev.Callback

	switch {
	case data == "back_to_main":
		b.clearSession(ctx, ev.ChatID)
		b.sendMainMenu(ctx, ev)

	case strings.HasPrefix(data, "letter_"):
		b.showPeopleByLetter(ctx, ev, strings.TrimPrefix(data, "letter_"))

	case strings.HasPrefix(data, "person_"):
		row, ok := parseRowToken(strings.TrimPrefix(data, "person_"))
		if !ok {
			b.showAlphabet(ctx, ev)
			return
		}
		b.openPerson(ctx, ev, sess, row)

	case data == "back_to_letters":
		b.showAlphabet(ctx, ev)

	case data == "back_to_people":
		if sess.LastLetter != "" {
			b.showPeopleByLetter(ctx, ev, sess.LastLetter)
		} else {
			b.showAlphabet(ctx, ev)
		}

	case data == "view":
		sess.Mode = session.ModeViewOnly
		b.saveSession(ctx, ev.ChatID, sess)
		b.showAlphabet(ctx, ev)

	case data == "edit":
		sess.Mode = session.ModeEdit
		b.saveSession(ctx, ev.ChatID, sess)
		b.showAlphabet(ctx, ev)

	case data == "create":
		b.startCreation(ctx, ev)

	case data == "admin_panel":
		if !b.auth.IsAdmin(ctx, sess.UserID) {
			b.reply(ctx, ev, Message{Text: "❌ У вас нет прав администратора."})
			return
		}
		b.showAdminMenu(ctx, ev)

	case data == "admin_users":
		b.showUsersList(ctx, ev)

	case data == "admin_stats":
		b.showAdminStats(ctx, ev)

	case data == "admin_logs":
		b.showAccessLogs(ctx, ev)

	case data == "back_to_admin":
		b.showAdminMenu(ctx, ev)

	case strings.HasPrefix(data, "edit_field_"):
		b.promptFieldValue(ctx, ev, sess, strings.TrimPrefix(data, "edit_field_"))

	case data == "add_category":
		sess.Step = session.StepWaitingNewCat
		b.saveSession(ctx, ev.ChatID, sess)
		b.reply(ctx, ev, Message{Text: "Напишите название новой категории:"})

	case data == "save_card":
		b.saveCard(ctx, ev, sess)

	case data == "cancel_builder":
		b.clearSession(ctx, ev.ChatID)
		b.sendMainMenu(ctx, ev)

	default:
		b.reply(ctx, ev, Message{Text: "Неизвестная команда"})
	}
}

// openPerson routes a selected row by the session's mode.
func (b *Bot) openPerson(ctx context.Context, ev *Event, sess *session.Session, row int) {
	switch sess.Mode {
	case session.ModeViewOnly:
		b.showCard(ctx, ev, sess, row)
	case session.ModeEdit:
		b.startEditing(ctx, ev, sess, row)
	default:
		// Mode lost (e.g. expired session): restart navigation.
		b.showAlphabet(ctx, ev)
	}
}

// reply renders the response: actions edit the originating message, plain
// messages get a new one. A failed edit falls back to a fresh send so the
// user is never left without a render.
func (b *Bot) reply(ctx context.Context, ev *Event, msg Message) {
	if ev.Callback != "" && ev.MessageID != 0 {
		if err := b.msgr.Edit(ctx, ev.ChatID, ev.MessageID, msg); err == nil {
			return
		} else {
			log.Warn().Err(err).Int64("chat_id", ev.ChatID).Msg("Edit failed, sending new message")
		}
	}
	if err := b.msgr.Send(ctx, ev.ChatID, msg); err != nil {
		log.Error().Err(err).Int64("chat_id", ev.ChatID).Msg("Send failed")
	}
}

func (b *Bot) sendDenied(ctx context.Context, ev *Event) {
	text := "⛔ <b>Доступ запрещен</b>\n\n" +
		"У вас нет прав для использования этого бота.\n\n" +
		"Ваш ID: " + formatID(ev.From.ID) + "\n" +
		"Обратитесь к администратору, чтобы получить доступ."
	if err := b.msgr.Send(ctx, ev.ChatID, Message{Text: text, HTML: true}); err != nil {
		log.Error().Err(err).Int64("chat_id", ev.ChatID).Msg("Failed to send denial")
	}
}

func (b *Bot) saveSession(ctx context.Context, chatID int64, sess *session.Session) {
	if err := b.sessions.Save(ctx, chatID, sess); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Session save failed")
	}
}

func (b *Bot) clearSession(ctx context.Context, chatID int64) {
	if err := b.sessions.Clear(ctx, chatID); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Session clear failed")
	}
}

func (b *Bot) renderError(ctx context.Context, ev *Event, err error) {
	log.Error().Err(err).Int64("chat_id", ev.ChatID).Msg("Operation failed")
	b.reply(ctx, ev, Message{Text: "❌ Ошибка: " + err.Error()})
}
