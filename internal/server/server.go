// Package server exposes the webhook endpoint and the service's operational
// surface over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"churchbot/internal/app"
	"churchbot/internal/auth"
	"churchbot/internal/bot"
	"churchbot/internal/cache"
	"churchbot/internal/session"
	"churchbot/internal/telegram"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// Handler routes HTTP traffic to the bot and its collaborators.
type Handler struct {
	bot      *bot.Bot
	tg       *telegram.Client
	auth     *auth.Manager
	store    *cache.Store
	sessions session.Store
	cfg      *app.Config

	started time.Time
}

func NewHandler(b *bot.Bot, tg *telegram.Client, authMgr *auth.Manager, store *cache.Store, sessions session.Store, cfg *app.Config) *Handler {
	return &Handler{
		bot:      b,
		tg:       tg,
		auth:     authMgr,
		store:    store,
		sessions: sessions,
		cfg:      cfg,
		started:  time.Now(),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)
	r.Get("/setup-webhook", h.SetupWebhook)
	r.Get("/webhook-info", h.WebhookInfo)
	r.Get("/bot-info", h.BotInfo)
	r.Post("/webhook", h.Webhook)

	return r
}

// Webhook receives one Bot API update. It always answers 200 quickly: the
// event is processed asynchronously, and a retryable status would only make
// Telegram redeliver updates we already consumed.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		log.Warn().Err(err).Msg("Failed to decode webhook update")
		w.WriteHeader(http.StatusOK)
		return
	}

	if ev := telegram.TranslateUpdate(&update); ev != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()
			h.bot.HandleEvent(ctx, ev)
		}()
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"service": "church-database-bot",
		"status":  "running",
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}

// Health reports per-component status. Any failing component flips the
// overall status to degraded.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	components := make(map[string]string)

	if _, err := h.store.GetHeaders(r.Context(), cache.DefaultSheet); err != nil {
		components["sheets"] = "error: " + err.Error()
		status = "degraded"
	} else {
		components["sheets"] = "ok"
	}

	if h.bot != nil {
		components["bot"] = "ok"
	} else {
		components["bot"] = "not initialized"
		status = "degraded"
	}

	components["sessions"] = sessionBackingName(h.sessions)

	writeJSON(w, map[string]any{
		"status":     status,
		"components": components,
	})
}

func sessionBackingName(s session.Store) string {
	switch s.(type) {
	case *session.RedisStore:
		return "redis"
	case *session.MemoryStore:
		return "memory"
	default:
		return "unknown"
	}
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.auth.GetStats(r.Context()))
}

// SetupWebhook registers SERVICE_URL/webhook with the Bot API.
func (h *Handler) SetupWebhook(w http.ResponseWriter, _ *http.Request) {
	if h.cfg.ServiceURL == "" {
		http.Error(w, "SERVICE_URL is not configured", http.StatusBadRequest)
		return
	}
	url := h.cfg.ServiceURL + "/webhook"
	if err := h.tg.SetWebhook(url); err != nil {
		log.Error().Err(err).Str("url", url).Msg("Webhook setup failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	log.Info().Str("url", url).Msg("Webhook registered")
	writeJSON(w, map[string]string{"status": "ok", "webhook": url})
}

func (h *Handler) WebhookInfo(w http.ResponseWriter, _ *http.Request) {
	info, err := h.tg.WebhookInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"url":             info.URL,
		"pending_updates": info.PendingUpdateCount,
		"last_error":      info.LastErrorMessage,
	})
}

func (h *Handler) BotInfo(w http.ResponseWriter, _ *http.Request) {
	self := h.tg.BotInfo()
	writeJSON(w, map[string]any{
		"id":       self.ID,
		"username": self.UserName,
		"name":     self.FirstName,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
