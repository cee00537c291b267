// Package auth gates every inbound event against the Users whitelist and
// keeps the append-only access log.
package auth

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"churchbot/internal/cache"

	"github.com/rs/zerolog/log"
)

// Users sheet columns: id, username, display_name, role.
var usersHeader = []string{"id", "username", "display_name", "role"}

// AccessLog sheet columns, append-only.
var accessLogHeader = []string{"timestamp", "id", "username", "first_name", "last_name", "status"}

const (
	StatusGranted = "GRANTED"
	StatusDenied  = "DENIED"

	RoleAdmin = "admin"
	RoleUser  = "user"
)

// UserInfo is the end-user identity attached to an inbound event.
type UserInfo struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// Manager routes all whitelist and log reads through the cache store; the
// mirrors are the single cache layer, invalidated by the write-through ops
// and the explicit refreshes below.
type Manager struct {
	store  *cache.Store
	remote cache.Remote // row deletion is not part of the cache contract

	mainAdminID    int64
	usersSheet     string
	accessLogSheet string
	mainSheet      string
}

func NewManager(store *cache.Store, remote cache.Remote, mainAdminID int64, usersSheet, accessLogSheet, mainSheet string) *Manager {
	return &Manager{
		store:          store,
		remote:         remote,
		mainAdminID:    mainAdminID,
		usersSheet:     usersSheet,
		accessLogSheet: accessLogSheet,
		mainSheet:      mainSheet,
	}
}

// CheckAccess decides whether the user may talk to the bot and records the
// attempt. The configured superuser is granted without a whitelist lookup.
func (m *Manager) CheckAccess(ctx context.Context, userID int64, info UserInfo) bool {
	if userID == m.mainAdminID {
		m.logAccess(ctx, info, StatusGranted)
		return true
	}

	allowed := m.inWhitelist(ctx, userID)
	status := StatusDenied
	if allowed {
		status = StatusGranted
	}
	m.logAccess(ctx, info, status)
	return allowed
}

// IsAdmin reports whether the user holds the admin role. The superuser
// short-circuits true.
func (m *Manager) IsAdmin(ctx context.Context, userID int64) bool {
	if userID == m.mainAdminID {
		return true
	}

	rows, err := m.store.GetAll(ctx, m.usersSheet)
	if err != nil {
		log.Error().Err(err).Msg("Error checking admin status")
		return false
	}
	for _, row := range dataRows(rows) {
		if len(row) >= 4 && parseID(row[0]) == userID && row[3] == RoleAdmin {
			return true
		}
	}
	return false
}

// AddUser whitelists a user. The result is a user-facing message, never an
// error: a duplicate id reports a warning instead.
func (m *Manager) AddUser(ctx context.Context, userID int64, username, firstName, lastName, role string) string {
	rows, err := m.store.GetAll(ctx, m.usersSheet)
	if err != nil {
		log.Error().Err(err).Msg("Error adding user")
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}
	for _, row := range dataRows(rows) {
		if len(row) > 0 && parseID(row[0]) == userID {
			return fmt.Sprintf("⚠️ Пользователь с ID %d уже существует", userID)
		}
	}

	if len(rows) == 0 {
		if _, err := m.store.AppendRow(ctx, m.usersSheet, usersHeader); err != nil {
			log.Error().Err(err).Msg("Error writing users header")
			return fmt.Sprintf("❌ Ошибка: %v", err)
		}
	}

	if role != RoleAdmin {
		role = RoleUser
	}
	displayName := strings.TrimSpace(firstName + " " + lastName)
	_, err = m.store.AppendRow(ctx, m.usersSheet, []string{
		strconv.FormatInt(userID, 10),
		username,
		displayName,
		role,
	})
	if err != nil {
		log.Error().Err(err).Msg("Error adding user")
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}

	roleLabel := "👤 Пользователь"
	if role == RoleAdmin {
		roleLabel = "👑 Админ"
	}
	return fmt.Sprintf("✅ Пользователь добавлен\nID: %d\nРоль: %s", userID, roleLabel)
}

// RemoveUser deletes the last whitelist row matching the id. The superuser
// cannot be removed.
func (m *Manager) RemoveUser(ctx context.Context, userID int64) string {
	if userID == m.mainAdminID {
		return "❌ Нельзя удалить главного администратора!"
	}

	rows, err := m.store.GetAll(ctx, m.usersSheet)
	if err != nil {
		log.Error().Err(err).Msg("Error removing user")
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}

	// Reverse scan: with duplicate ids the most recently added row goes.
	for i := len(rows) - 1; i >= 1; i-- {
		if len(rows[i]) > 0 && parseID(rows[i][0]) == userID {
			if err := m.remote.DeleteRow(ctx, m.usersSheet, i+1); err != nil {
				log.Error().Err(err).Msg("Error removing user")
				return fmt.Sprintf("❌ Ошибка: %v", err)
			}
			if _, err := m.store.Refresh(ctx, m.usersSheet); err != nil {
				log.Error().Err(err).Msg("Error refreshing users after removal")
			}
			return "✅ Пользователь удален"
		}
	}
	return "❌ Пользователь не найден"
}

// ListUsers renders the whitelist as display text.
func (m *Manager) ListUsers(ctx context.Context) string {
	rows, err := m.store.GetAll(ctx, m.usersSheet)
	if err != nil {
		log.Error().Err(err).Msg("Error getting users list")
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}
	users := dataRows(rows)
	if len(users) == 0 {
		return "📭 Список пользователей пуст"
	}

	var sb strings.Builder
	sb.WriteString("👥 <b>Список пользователей</b>\n\n")
	for i, row := range users {
		if len(row) < 4 {
			continue
		}
		username := row[1]
		if username == "" {
			username = "Не указано"
		}
		name := row[2]
		if name == "" {
			name = "Не указано"
		}
		role := "👤 Пользователь"
		if row[3] == RoleAdmin {
			role = "👑 Админ"
		}
		fmt.Fprintf(&sb, "%d. ID: <code>%s</code>\n", i+1, row[0])
		fmt.Fprintf(&sb, "   👤: %s\n", name)
		fmt.Fprintf(&sb, "   📱: %s\n", username)
		fmt.Fprintf(&sb, "   🏷️: %s\n\n", role)
	}
	return sb.String()
}

// RecentLogs renders the most recent access-log entries, newest first.
// Entries whose timestamp does not parse are skipped.
func (m *Manager) RecentLogs(ctx context.Context, limit int) string {
	rows, err := m.store.GetAll(ctx, m.accessLogSheet)
	if err != nil {
		log.Error().Err(err).Msg("Error getting access logs")
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}
	logs := dataRows(rows)
	if len(logs) == 0 {
		return "📭 Логи пусты"
	}

	var sb strings.Builder
	sb.WriteString("📋 <b>Последние визиты</b>\n\n")
	shown := 0
	for i := len(logs) - 1; i >= 0 && shown < limit; i-- {
		row := logs[i]
		if len(row) < 6 {
			continue
		}
		ts, err := time.Parse(time.RFC3339, row[0])
		if err != nil {
			continue
		}
		status := "✅"
		if row[5] == StatusDenied {
			status = "⛔"
		}
		name := strings.TrimSpace(row[3] + " " + row[4])
		if name == "" {
			name = row[2]
		}
		fmt.Fprintf(&sb, "%s %s — %s (ID: %s)\n", status, ts.Format("02.01.06 15:04"), name, row[1])
		shown++
	}
	if shown == 0 {
		return "📭 Логи пусты"
	}
	return sb.String()
}

// DatabaseStats describes the main sheet.
type DatabaseStats struct {
	Records int `json:"records"`
	Columns int `json:"columns"`
}

// UserStats summarizes the whitelist.
type UserStats struct {
	Total   int `json:"total"`
	Admins  int `json:"admins"`
	Regular int `json:"regular"`
}

// LogStats summarizes the access log.
type LogStats struct {
	Total   int `json:"total"`
	Granted int `json:"granted"`
	Denied  int `json:"denied"`
}

// Stats carries the three sections; any of them may be nil when its source
// could not be read, without affecting the others.
type Stats struct {
	Database *DatabaseStats `json:"database,omitempty"`
	Users    *UserStats     `json:"users,omitempty"`
	Logs     *LogStats      `json:"logs,omitempty"`
}

// GetStats computes each section independently; a failure in one is logged
// and leaves that section nil.
func (m *Manager) GetStats(ctx context.Context) Stats {
	var stats Stats

	if rows, err := m.store.GetAll(ctx, m.mainSheet); err != nil {
		log.Error().Err(err).Msg("Error computing database stats")
	} else {
		columns := 0
		if len(rows) > 0 {
			columns = len(rows[0])
		}
		stats.Database = &DatabaseStats{Records: max(len(rows)-1, 0), Columns: columns}
	}

	if rows, err := m.store.GetAll(ctx, m.usersSheet); err != nil {
		log.Error().Err(err).Msg("Error computing user stats")
	} else {
		admins := 0
		users := dataRows(rows)
		for _, row := range users {
			if len(row) >= 4 && row[3] == RoleAdmin {
				admins++
			}
		}
		stats.Users = &UserStats{Total: len(users), Admins: admins, Regular: len(users) - admins}
	}

	if rows, err := m.store.GetAll(ctx, m.accessLogSheet); err != nil {
		log.Error().Err(err).Msg("Error computing log stats")
	} else {
		granted, denied := 0, 0
		logs := dataRows(rows)
		for _, row := range logs {
			if len(row) >= 6 {
				switch row[5] {
				case StatusGranted:
					granted++
				case StatusDenied:
					denied++
				}
			}
		}
		stats.Logs = &LogStats{Total: len(logs), Granted: granted, Denied: denied}
	}

	return stats
}

// RefreshAll refreshes every mirror this component depends on. Used by the
// admin reload command; all three complete before it reports success.
func (m *Manager) RefreshAll(ctx context.Context) (int, error) {
	count, err := m.store.Refresh(ctx, m.mainSheet)
	if err != nil {
		return 0, err
	}
	if _, err := m.store.Refresh(ctx, m.usersSheet); err != nil {
		return 0, err
	}
	if _, err := m.store.Refresh(ctx, m.accessLogSheet); err != nil {
		return 0, err
	}
	return count, nil
}

func (m *Manager) inWhitelist(ctx context.Context, userID int64) bool {
	rows, err := m.store.GetAll(ctx, m.usersSheet)
	if err != nil {
		log.Error().Err(err).Msg("Error loading users data")
		return false
	}
	for _, row := range dataRows(rows) {
		if len(row) > 0 && parseID(row[0]) == userID {
			return true
		}
	}
	return false
}

// logAccess appends one entry to the access log. Failures are logged and
// swallowed: an unreachable log sheet must not block the conversation.
func (m *Manager) logAccess(ctx context.Context, info UserInfo, status string) {
	rows, err := m.store.GetAll(ctx, m.accessLogSheet)
	if err == nil && len(rows) == 0 {
		if _, err := m.store.AppendRow(ctx, m.accessLogSheet, accessLogHeader); err != nil {
			log.Error().Err(err).Msg("Error writing access log header")
		}
	}

	username := ""
	if info.Username != "" {
		username = "@" + info.Username
	}
	_, err = m.store.AppendRow(ctx, m.accessLogSheet, []string{
		time.Now().Format(time.RFC3339),
		strconv.FormatInt(info.ID, 10),
		username,
		info.FirstName,
		info.LastName,
		status,
	})
	if err != nil {
		log.Error().Err(err).Msg("Error logging access")
	}
}

// dataRows skips the header row.
func dataRows(rows [][]string) [][]string {
	if len(rows) <= 1 {
		return nil
	}
	return rows[1:]
}

func parseID(raw string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
