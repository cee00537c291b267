package bot

import (
	"context"
	"fmt"
	"strings"

	"churchbot/internal/cache"
	"churchbot/internal/dates"
	"churchbot/internal/session"

	"github.com/rs/zerolog/log"
)

// startCreation enters the builder with an empty draft.
func (b *Bot) startCreation(ctx context.Context, ev *Event) {
	sess, err := b.sessions.Get(ctx, ev.ChatID)
	if err != nil {
		sess = session.New()
	}
	sess.State = session.StateBuilderMode
	sess.Mode = session.ModeCreate
	sess.Step = session.StepMenu
	sess.Draft = make(map[string]string)
	sess.EditingRow = 0
	sess.CurrentField = ""
	sess.UserID = ev.From.ID
	b.saveSession(ctx, ev.ChatID, sess)

	b.showBuilderMenu(ctx, ev, sess)
}

// startEditing enters the builder with the draft seeded from an existing row.
func (b *Bot) startEditing(ctx context.Context, ev *Event, sess *session.Session, rowNumber int) {
	data, err := b.store.GetAll(ctx, cache.DefaultSheet)
	if err != nil {
		b.renderError(ctx, ev, err)
		return
	}
	if rowNumber < 2 || rowNumber > len(data) {
		b.notFound(ctx, ev, sess)
		return
	}

	headers := data[0]
	row := data[rowNumber-1]

	draft := make(map[string]string)
	for i, header := range headers {
		if value := cellAt(row, i); value != "" {
			draft[header] = value
		}
	}

	sess.State = session.StateBuilderMode
	sess.Mode = session.ModeEdit
	sess.Step = session.StepMenu
	sess.Draft = draft
	sess.EditingRow = rowNumber
	sess.CurrentField = ""
	b.saveSession(ctx, ev.ChatID, sess)

	b.showBuilderMenu(ctx, ev, sess)
}

// showBuilderMenu lists one button per sheet header with the draft's current
// value, plus controls for new categories, save and cancel.
func (b *Bot) showBuilderMenu(ctx context.Context, ev *Event, sess *session.Session) {
	headers, err := b.store.GetHeaders(ctx, cache.DefaultSheet)
	if err != nil {
		b.renderError(ctx, ev, err)
		return
	}

	title := "📝 <b>Создание карточки</b>"
	if sess.Mode == session.ModeEdit {
		title = "✏️ <b>Редактирование карточки</b>"
	}

	keyboard := make([][]Button, 0, len(headers)+3)
	for _, header := range headers {
		label := "⬜ " + header
		if value, ok := sess.Draft[header]; ok && value != "" {
			if b.cfg.IsDateColumn(header) {
				value = dates.FormatDisplay(value)
			}
			label = fmt.Sprintf("✅ %s: %s", header, value)
		}
		keyboard = append(keyboard, []Button{{Label: label, Data: "edit_field_" + header}})
	}
	keyboard = append(keyboard,
		[]Button{{Label: "➕ Новая категория", Data: "add_category"}},
		[]Button{{Label: "💾 Сохранить", Data: "save_card"}},
		[]Button{{Label: "❌ Отмена", Data: "cancel_builder"}},
	)

	sess.Step = session.StepMenu
	sess.CurrentField = ""
	b.saveSession(ctx, ev.ChatID, sess)

	b.reply(ctx, ev, Message{
		Text:     title + "\nВыберите поле для заполнения:",
		Keyboard: keyboard,
		HTML:     true,
	})
}

// promptFieldValue asks for a value for the chosen field, showing the current
// draft value and a format hint for date columns.
func (b *Bot) promptFieldValue(ctx context.Context, ev *Event, sess *session.Session, field string) {
	sess.Step = session.StepWaitingValue
	sess.CurrentField = field
	b.saveSession(ctx, ev.ChatID, sess)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Введите значение для поля <b>%s</b>", escapeHTML(field))
	if current, ok := sess.Draft[field]; ok && current != "" {
		if b.cfg.IsDateColumn(field) {
			current = dates.FormatDisplay(current)
		}
		fmt.Fprintf(&sb, "\nТекущее значение: %s", escapeHTML(current))
	}
	if b.cfg.IsDateColumn(field) {
		sb.WriteString("\n(формат: ДД.ММ.ГГГГ)")
	}

	b.reply(ctx, ev, Message{Text: sb.String(), HTML: true})
}

// handleBuilderText consumes free text while inside the builder.
func (b *Bot) handleBuilderText(ctx context.Context, ev *Event, sess *session.Session, text string) {
	switch sess.Step {
	case session.StepWaitingValue:
		if sess.CurrentField == "" {
			b.showBuilderMenu(ctx, ev, sess)
			return
		}
		// Stored verbatim; dates get reformatted only at save time.
		sess.Draft[sess.CurrentField] = text
		b.showBuilderMenu(ctx, ev, sess)

	case session.StepWaitingNewCat:
		b.addCategory(ctx, ev, sess, strings.TrimSpace(text))

	default:
		// At the menu a typed field label works like pressing its button.
		if headers, err := b.store.GetHeaders(ctx, cache.DefaultSheet); err == nil {
			for _, header := range headers {
				if strings.HasPrefix(text, header) {
					b.promptFieldValue(ctx, ev, sess, header)
					return
				}
			}
		}
		b.showBuilderMenu(ctx, ev, sess)
	}
}

func (b *Bot) addCategory(ctx context.Context, ev *Event, sess *session.Session, name string) {
	if name == "" {
		b.reply(ctx, ev, Message{Text: "Название категории не может быть пустым."})
		return
	}

	added, err := b.store.AddColumn(ctx, cache.DefaultSheet, name)
	if err != nil {
		log.Error().Err(err).Str("category", name).Msg("Failed to add category")
		b.reply(ctx, ev, Message{Text: "❌ Не удалось добавить категорию: " + err.Error()})
		b.showBuilderMenu(ctx, ev, sess)
		return
	}
	if !added {
		b.reply(ctx, ev, Message{Text: fmt.Sprintf("Категория «%s» уже существует.", name)})
		b.showBuilderMenu(ctx, ev, sess)
		return
	}

	b.reply(ctx, ev, Message{Text: fmt.Sprintf("✅ Категория «%s» добавлена.", name)})
	b.showBuilderMenu(ctx, ev, sess)
}

// saveCard commits the draft as a new row or an update to the edited row.
// The row follows the sheet's current header order, so categories added after
// the draft was seeded come through with empty values. The session is cleared
// only after the write is confirmed; on failure the builder stays open with
// the draft intact.
func (b *Bot) saveCard(ctx context.Context, ev *Event, sess *session.Session) {
	headers, err := b.store.GetHeaders(ctx, cache.DefaultSheet)
	if err != nil {
		b.renderError(ctx, ev, err)
		return
	}

	row := make([]string, len(headers))
	for i, header := range headers {
		value := sess.Draft[header]
		if b.cfg.IsDateColumn(header) {
			value = dates.RewriteForSave(value)
		}
		row[i] = value
	}

	if sess.Mode == session.ModeEdit && sess.EditingRow >= 2 {
		err = b.store.UpdateRow(ctx, cache.DefaultSheet, sess.EditingRow, row)
	} else {
		_, err = b.store.AppendRow(ctx, cache.DefaultSheet, row)
	}
	if err != nil {
		log.Error().Err(err).Int64("chat_id", ev.ChatID).Msg("Failed to save card")
		b.reply(ctx, ev, Message{Text: "❌ Ошибка сохранения: " + err.Error() + "\nПопробуйте еще раз."})
		b.showBuilderMenu(ctx, ev, sess)
		return
	}

	b.clearSession(ctx, ev.ChatID)
	b.reply(ctx, ev, Message{Text: "✅ Карточка сохранена!"})
	b.sendMainMenu(ctx, ev)
}
