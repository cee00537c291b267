package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"churchbot/internal/cache"
	"churchbot/internal/dates"
	"churchbot/internal/session"
)

// sendMainMenu resets the conversation to the top level.
func (b *Bot) sendMainMenu(ctx context.Context, ev *Event) {
	sess, err := b.sessions.Get(ctx, ev.ChatID)
	if err != nil {
		sess = session.New()
	}
	sess.State = session.StateIdle
	sess.UserID = ev.From.ID
	b.saveSession(ctx, ev.ChatID, sess)

	keyboard := [][]Button{
		{{Label: "🔍 Найти / Просмотреть", Data: "view"}},
		{{Label: "✏️ Редактировать карточку", Data: "edit"}},
		{{Label: "➕ Создать карточку", Data: "create"}},
	}
	if b.auth.IsAdmin(ctx, ev.From.ID) {
		keyboard = append(keyboard, []Button{{Label: "🛡️ Админ панель", Data: "admin_panel"}})
	}

	b.reply(ctx, ev, Message{
		Text:     "⛪ <b>Церковная база данных</b>\nВыберите действие:",
		Keyboard: keyboard,
		HTML:     true,
	})
}

// showAlphabet renders the set of first letters present in the name column.
func (b *Bot) showAlphabet(ctx context.Context, ev *Event) {
	data, err := b.store.GetAll(ctx, cache.DefaultSheet)
	if err != nil {
		b.renderError(ctx, ev, err)
		return
	}

	var headers []string
	if len(data) > 0 {
		headers = data[0]
	}
	nameIdx := indexOf(headers, b.cfg.ColFirstName)
	if nameIdx == -1 {
		b.reply(ctx, ev, Message{Text: fmt.Sprintf("⚠️ Ошибка: Нет колонки '%s'", b.cfg.ColFirstName)})
		return
	}

	letterSet := make(map[string]bool)
	for _, row := range data[1:] {
		if l := firstLetter(cellAt(row, nameIdx)); l != "" {
			letterSet[l] = true
		}
	}

	if len(letterSet) == 0 {
		b.reply(ctx, ev, Message{Text: "В базе нет данных. Создайте первую карточку."})
		b.clearSession(ctx, ev.ChatID)
		b.sendMainMenu(ctx, ev)
		return
	}

	letters := make([]string, 0, len(letterSet))
	for l := range letterSet {
		letters = append(letters, l)
	}
	sort.Strings(letters)

	buttons := make([]Button, len(letters))
	for i, l := range letters {
		buttons[i] = Button{Label: l, Data: "letter_" + l}
	}
	keyboard := chunkButtons(buttons, 5)
	keyboard = append(keyboard, []Button{{Label: "⬅️ Назад", Data: "back_to_main"}})

	sess, err := b.sessions.Get(ctx, ev.ChatID)
	if err != nil {
		sess = session.New()
	}
	sess.State = session.StateSelectingLetter
	b.saveSession(ctx, ev.ChatID, sess)

	b.reply(ctx, ev, Message{Text: "🔤 Выберите первую букву имени:", Keyboard: keyboard})
}

// showPeopleByLetter lists people whose first name starts with the letter.
// People sharing a (first name, last name) pair get a birth-date suffix so
// they can be told apart.
func (b *Bot) showPeopleByLetter(ctx context.Context, ev *Event, letter string) {
	data, err := b.store.GetAll(ctx, cache.DefaultSheet)
	if err != nil {
		b.renderError(ctx, ev, err)
		return
	}

	var headers []string
	if len(data) > 0 {
		headers = data[0]
	}
	nameIdx := indexOf(headers, b.cfg.ColFirstName)
	surnameIdx := indexOf(headers, b.cfg.ColLastName)
	birthIdx := indexOf(headers, b.cfg.ColBirthDate)
	if nameIdx == -1 {
		b.reply(ctx, ev, Message{Text: "❌ Ошибка: не найдена колонка с именами"})
		return
	}

	prefix := strings.ToUpper(letter)
	matches := func(name string) bool {
		return name != "" && strings.HasPrefix(strings.ToUpper(name), prefix)
	}

	// First pass counts namesakes so only ambiguous entries get the suffix.
	nameCounts := make(map[string]int)
	for _, row := range data[1:] {
		name := cellAt(row, nameIdx)
		if matches(name) {
			nameCounts[nameKey(name, cellAt(row, surnameIdx))]++
		}
	}

	var people []session.Person
	for i, row := range data[1:] {
		rowNumber := i + 2
		name := cellAt(row, nameIdx)
		if !matches(name) {
			continue
		}
		surname := cellAt(row, surnameIdx)
		display := strings.TrimSpace(name + " " + surname)

		if nameCounts[nameKey(name, surname)] > 1 {
			if birth := dates.FormatDisplay(cellAt(row, birthIdx)); birth != "" {
				display = fmt.Sprintf("%s (р. %s)", display, birth)
			}
		}
		people = append(people, session.Person{
			Label: fmt.Sprintf("%s [#%d]", display, rowNumber),
			Row:   rowNumber,
		})
	}

	if len(people) == 0 {
		b.reply(ctx, ev, Message{Text: "Нет имен на букву " + letter})
		b.showAlphabet(ctx, ev)
		return
	}

	keyboard := make([][]Button, 0, len(people)+1)
	for _, p := range people {
		keyboard = append(keyboard, []Button{{Label: p.Label, Data: fmt.Sprintf("person_%d", p.Row)}})
	}
	keyboard = append(keyboard, []Button{{Label: "⬅️ Назад к буквам", Data: "back_to_letters"}})

	sess, err := b.sessions.Get(ctx, ev.ChatID)
	if err != nil {
		sess = session.New()
	}
	sess.State = session.StateSelectingPerson
	sess.LastLetter = letter
	sess.People = people
	b.saveSession(ctx, ev.ChatID, sess)

	b.reply(ctx, ev, Message{Text: "👤 Выберите человека:", Keyboard: keyboard})
}

// showCard renders every non-empty field of the selected row.
func (b *Bot) showCard(ctx context.Context, ev *Event, sess *session.Session, rowNumber int) {
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

	var sb strings.Builder
	sb.WriteString("📋 <b>Информация о прихожанине:</b>\n\n")
	hasData := false
	for i, header := range headers {
		value := cellAt(row, i)
		if value == "" {
			continue
		}
		if b.cfg.IsDateColumn(header) {
			value = dates.FormatDisplay(value)
		}
		fmt.Fprintf(&sb, "🔹 <b>%s:</b> %s\n", escapeHTML(header), escapeHTML(value))
		hasData = true
	}
	if !hasData {
		sb.WriteString("(Нет данных)")
	}

	keyboard := [][]Button{
		{{Label: "⬅️ К списку имен", Data: "back_to_people"}},
		{{Label: "🏠 В главное меню", Data: "back_to_main"}},
	}

	sess.State = session.StateViewingCard
	sess.ViewingRow = rowNumber
	b.saveSession(ctx, ev.ChatID, sess)

	b.reply(ctx, ev, Message{Text: sb.String(), Keyboard: keyboard, HTML: true})
}

// notFound reports a stale row selection and routes the user back one level.
func (b *Bot) notFound(ctx context.Context, ev *Event, sess *session.Session) {
	b.reply(ctx, ev, Message{Text: "❌ Человек не найден (возможно, удален)."})
	if sess.LastLetter != "" {
		b.showPeopleByLetter(ctx, ev, sess.LastLetter)
	} else {
		b.showAlphabet(ctx, ev)
	}
}

func nameKey(name, surname string) string {
	return strings.ToLower(name) + "_" + strings.ToLower(surname)
}

// --- text-state handlers ---

func (b *Bot) handleIdleText(ctx context.Context, ev *Event, sess *session.Session, text string) {
	switch {
	case text == "🛡️ Админ панель":
		if !b.auth.IsAdmin(ctx, sess.UserID) {
			b.reply(ctx, ev, Message{Text: "❌ У вас нет прав администратора."})
			return
		}
		b.showAdminMenu(ctx, ev)
	case strings.Contains(text, "Создать карточку") || text == "/create":
		b.startCreation(ctx, ev)
	case strings.Contains(text, "Найти") || strings.Contains(text, "Просмотреть") || text == "/view":
		sess.Mode = session.ModeViewOnly
		b.saveSession(ctx, ev.ChatID, sess)
		b.showAlphabet(ctx, ev)
	case strings.Contains(text, "Редактировать") || text == "/edit":
		sess.Mode = session.ModeEdit
		b.saveSession(ctx, ev.ChatID, sess)
		b.showAlphabet(ctx, ev)
	default:
		b.sendMainMenu(ctx, ev)
	}
}

func (b *Bot) handleLetterText(ctx context.Context, ev *Event, text string) {
	if text == "⬅️ Назад" {
		b.clearSession(ctx, ev.ChatID)
		b.sendMainMenu(ctx, ev)
		return
	}
	if utf8.RuneCountInString(text) == 1 {
		if l := firstLetter(text); l != "" {
			b.showPeopleByLetter(ctx, ev, l)
			return
		}
	}
	b.showAlphabet(ctx, ev)
}

func (b *Bot) handlePersonText(ctx context.Context, ev *Event, sess *session.Session, text string) {
	if text == "⬅️ Назад к буквам" {
		b.showAlphabet(ctx, ev)
		return
	}
	if row, ok := rowSuffix(text); ok {
		b.openPerson(ctx, ev, sess, row)
		return
	}
	b.notFound(ctx, ev, sess)
}

func (b *Bot) handleViewingText(ctx context.Context, ev *Event, sess *session.Session, text string) {
	switch text {
	case "⬅️ К списку имен":
		if sess.LastLetter != "" {
			b.showPeopleByLetter(ctx, ev, sess.LastLetter)
		} else {
			b.showAlphabet(ctx, ev)
		}
	case "🏠 В главное меню":
		b.clearSession(ctx, ev.ChatID)
		b.sendMainMenu(ctx, ev)
	default:
		if sess.ViewingRow != 0 {
			b.showCard(ctx, ev, sess, sess.ViewingRow)
		} else {
			b.sendMainMenu(ctx, ev)
		}
	}
}
