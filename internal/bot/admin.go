package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"churchbot/internal/auth"
	"churchbot/internal/session"

	"github.com/rs/zerolog/log"
)

const recentLogLimit = 10

// showAdminMenu enters the admin sub-machine. Callers have already passed the
// admin check.
func (b *Bot) showAdminMenu(ctx context.Context, ev *Event) {
	sess, err := b.sessions.Get(ctx, ev.ChatID)
	if err != nil {
		sess = session.New()
	}
	sess.State = session.StateAdminMenu
	sess.UserID = ev.From.ID
	b.saveSession(ctx, ev.ChatID, sess)

	keyboard := [][]Button{
		{{Label: "👥 Пользователи", Data: "admin_users"}},
		{{Label: "📊 Статистика", Data: "admin_stats"}},
		{{Label: "📋 Логи доступа", Data: "admin_logs"}},
		{{Label: "🏠 В главное меню", Data: "back_to_main"}},
	}
	b.reply(ctx, ev, Message{
		Text:     "🛡️ <b>Админ панель</b>\nВыберите раздел:",
		Keyboard: keyboard,
		HTML:     true,
	})
}

func (b *Bot) handleAdminMenuText(ctx context.Context, ev *Event, text string) {
	switch {
	case strings.Contains(text, "Пользователи"):
		b.showUsersList(ctx, ev)
	case strings.Contains(text, "Статистика"):
		b.showAdminStats(ctx, ev)
	case strings.Contains(text, "Логи"):
		b.showAccessLogs(ctx, ev)
	case strings.Contains(text, "главное меню"):
		b.clearSession(ctx, ev.ChatID)
		b.sendMainMenu(ctx, ev)
	default:
		b.showAdminMenu(ctx, ev)
	}
}

func (b *Bot) showUsersList(ctx context.Context, ev *Event) {
	b.reply(ctx, ev, Message{
		Text:     b.auth.ListUsers(ctx),
		Keyboard: adminBackKeyboard(),
		HTML:     true,
	})
}

func (b *Bot) showAdminStats(ctx context.Context, ev *Event) {
	stats := b.auth.GetStats(ctx)

	var sb strings.Builder
	sb.WriteString("📊 <b>Статистика</b>\n\n")
	if d := stats.Database; d != nil {
		fmt.Fprintf(&sb, "📗 База: %d записей, %d колонок\n", d.Records, d.Columns)
	} else {
		sb.WriteString("📗 База: недоступна\n")
	}
	if u := stats.Users; u != nil {
		fmt.Fprintf(&sb, "👥 Пользователи: %d (👑 %d / 👤 %d)\n", u.Total, u.Admins, u.Regular)
	} else {
		sb.WriteString("👥 Пользователи: недоступны\n")
	}
	if l := stats.Logs; l != nil {
		fmt.Fprintf(&sb, "📋 Визиты: %d (✅ %d / ⛔ %d)\n", l.Total, l.Granted, l.Denied)
	} else {
		sb.WriteString("📋 Визиты: недоступны\n")
	}

	b.reply(ctx, ev, Message{Text: sb.String(), Keyboard: adminBackKeyboard(), HTML: true})
}

func (b *Bot) showAccessLogs(ctx context.Context, ev *Event) {
	b.reply(ctx, ev, Message{
		Text:     b.auth.RecentLogs(ctx, recentLogLimit),
		Keyboard: adminBackKeyboard(),
		HTML:     true,
	})
}

func adminBackKeyboard() [][]Button {
	return [][]Button{{{Label: "⬅️ Назад", Data: "back_to_admin"}}}
}

// handleAdminCommand parses the /admin command surface:
//
//	/admin                    open the admin panel
//	/admin users|stats|logs   the same sections as the panel buttons
//	/admin reload             refresh every sheet mirror
//	/admin add <id> [admin]   whitelist a user, optionally as admin
//	/admin remove <id>        drop a user from the whitelist
//
// The admin check has already passed in handleText.
func (b *Bot) handleAdminCommand(ctx context.Context, ev *Event, text string) {
	args := strings.Fields(text)[1:]
	if len(args) == 0 {
		b.showAdminMenu(ctx, ev)
		return
	}

	switch args[0] {
	case "users":
		b.showUsersList(ctx, ev)

	case "stats":
		b.showAdminStats(ctx, ev)

	case "logs":
		b.showAccessLogs(ctx, ev)

	case "reload":
		count, err := b.auth.RefreshAll(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Cache reload failed")
			b.reply(ctx, ev, Message{Text: "❌ Ошибка обновления: " + err.Error()})
			return
		}
		b.reply(ctx, ev, Message{Text: fmt.Sprintf("🔄 Кеш обновлен (%d записей)", count)})

	case "add":
		if len(args) < 2 {
			b.reply(ctx, ev, Message{Text: "Использование: /admin add <id> [admin]"})
			return
		}
		userID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			b.reply(ctx, ev, Message{Text: "❌ Неверный ID: " + args[1]})
			return
		}
		role := auth.RoleUser
		if len(args) >= 3 && args[2] == auth.RoleAdmin {
			role = auth.RoleAdmin
		}
		// Profile fields are best effort: the user may have never talked to
		// the bot, then only the id goes into the whitelist.
		info, err := b.msgr.ChatInfo(ctx, userID)
		if err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Msg("Could not resolve user profile")
			info = auth.UserInfo{ID: userID}
		}
		result := b.auth.AddUser(ctx, userID, info.Username, info.FirstName, info.LastName, role)
		b.reply(ctx, ev, Message{Text: result})

	case "remove":
		if len(args) < 2 {
			b.reply(ctx, ev, Message{Text: "Использование: /admin remove <id>"})
			return
		}
		userID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			b.reply(ctx, ev, Message{Text: "❌ Неверный ID: " + args[1]})
			return
		}
		b.reply(ctx, ev, Message{Text: b.auth.RemoveUser(ctx, userID)})

	default:
		b.reply(ctx, ev, Message{Text: "Неизвестная команда. Доступно: users, stats, logs, reload, add, remove"})
	}
}
