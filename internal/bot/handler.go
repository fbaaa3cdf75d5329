// Package bot turns Telegram updates into ledger commands and extractions.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ledger-bot/internal/domain"
	"ledger-bot/internal/extract"
	"ledger-bot/internal/ledger"
	"ledger-bot/internal/metrics"
	"ledger-bot/internal/render"
)

// Sender is satisfied by *tgbotapi.BotAPI.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, req extract.Request) domain.AnalysisResult
}

type Config struct {
	// RequireDigit skips extraction for messages without any digit.
	RequireDigit bool
	// Location is the calendar for "today" and monthly windows. Defaults to time.Local.
	Location *time.Location
	// HistoryURL returns a signed link to the group's history page. Optional.
	HistoryURL func(groupID string) (string, error)
	// BotUsername is compared with "/cmd@name" suffixes. Empty accepts any.
	BotUsername string
}

type Handler struct {
	ledger   *ledger.Service
	analyzer Analyzer
	sender   Sender
	cfg      Config
	now      func() time.Time
}

func NewHandler(svc *ledger.Service, analyzer Analyzer, sender Sender, cfg Config) *Handler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Handler{
		ledger:   svc,
		analyzer: analyzer,
		sender:   sender,
		cfg:      cfg,
		now:      time.Now,
	}
}

// HandleUpdates processes a delivery in order. A failing update is logged and
// does not stop the rest.
func (h *Handler) HandleUpdates(ctx context.Context, updates []tgbotapi.Update) {
	for _, u := range updates {
		if err := h.handleUpdate(ctx, u); err != nil {
			metrics.Events.WithLabelValues("failed").Inc()
			slog.Error("❌ Update failed", "update_id", u.UpdateID, "error", err)
		}
	}
}

func (h *Handler) handleUpdate(ctx context.Context, u tgbotapi.Update) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	ev, err := BuildEvent(u)
	if err != nil {
		return err
	}
	if ev.Kind != EventText {
		metrics.Events.WithLabelValues("ignored").Inc()
		return nil
	}

	slog.Info("📥 Message received", "group_id", ev.GroupID, "user_id", ev.UserID, "text", ev.Text)
	handled, err := h.HandleEvent(ctx, ev)
	if err != nil {
		return err
	}
	if handled {
		metrics.Events.WithLabelValues("handled").Inc()
	} else {
		metrics.Events.WithLabelValues("skipped").Inc()
	}
	return nil
}

// HandleEvent runs one text event through the router. It reports whether the
// event produced a command or a saved transaction.
func (h *Handler) HandleEvent(ctx context.Context, ev Event) (bool, error) {
	now := h.now().In(h.cfg.Location)

	cmd := Route(ev.Text, h.cfg.BotUsername)
	if cmd.Kind == CmdOtherBot {
		return false, nil
	}
	if cmd.Kind != CmdNone {
		metrics.Commands.WithLabelValues(cmd.Kind.String()).Inc()
		return true, h.runCommand(ctx, ev, cmd, now)
	}

	if h.cfg.RequireDigit && !HasDigit(ev.Text) {
		return false, nil
	}
	return h.record(ctx, ev, now)
}

func (h *Handler) runCommand(ctx context.Context, ev Event, cmd Command, now time.Time) error {
	switch cmd.Kind {
	case CmdNickname:
		if _, err := h.ledger.SetNickname(ctx, ev.GroupID, ev.UserID, cmd.Arg); err != nil {
			return err
		}
		return h.reply(ev, render.NicknameSet(cmd.Arg))

	case CmdRename:
		if _, err := h.ledger.SetGroupName(ctx, ev.GroupID, cmd.Arg); err != nil {
			return err
		}
		return h.reply(ev, render.GroupRenamed(cmd.Arg))

	case CmdPayer:
		tx, err := h.ledger.ReassignLastPayer(ctx, ev.GroupID, cmd.Arg)
		if err != nil {
			return err
		}
		if tx == nil {
			return h.reply(ev, render.NothingToReassign())
		}
		return h.reply(ev, render.PayerReassigned(tx))

	case CmdDashboard:
		d, err := h.ledger.Dashboard(ctx, ev.GroupID, now, ledger.ChatRecentLimit)
		if err != nil {
			return err
		}
		return h.reply(ev, render.Dashboard(d, h.historyURL(ev.GroupID)))

	case CmdHelp:
		categories, err := h.ledger.Categories(ctx, ev.GroupID)
		if err != nil {
			return err
		}
		return h.reply(ev, render.Help(categories))

	case CmdUndo:
		tx, err := h.ledger.UndoLast(ctx, ev.GroupID)
		if err != nil {
			return err
		}
		if tx == nil {
			return h.reply(ev, render.NothingToUndo())
		}
		return h.reply(ev, render.Undone(tx))
	}
	return fmt.Errorf("unhandled command %v", cmd.Kind)
}

func (h *Handler) record(ctx context.Context, ev Event, now time.Time) (bool, error) {
	categories, err := h.ledger.Categories(ctx, ev.GroupID)
	if err != nil {
		return false, err
	}
	nicknames, err := h.ledger.KnownNicknames(ctx, ev.GroupID)
	if err != nil {
		return false, err
	}

	result := h.analyzer.Analyze(ctx, extract.Request{
		Text:       ev.Text,
		Categories: categories,
		Nicknames:  nicknames,
		Today:      now,
	})
	if !result.IsAccounting || len(result.Entries) == 0 {
		return false, nil
	}

	saved, err := h.ledger.RecordEntries(ctx, ev.GroupID, ev.UserID, result.Entries, now)
	if err != nil {
		return false, err
	}
	return true, h.reply(ev, render.Saved(saved))
}

func (h *Handler) historyURL(groupID string) string {
	if h.cfg.HistoryURL == nil {
		return ""
	}
	url, err := h.cfg.HistoryURL(groupID)
	if err != nil {
		slog.Warn("History link unavailable", "group_id", groupID, "error", err)
		return ""
	}
	return url
}

var errNoSender = errors.New("no sender configured")

func (h *Handler) reply(ev Event, text string) error {
	if h.sender == nil {
		return errNoSender
	}
	msg := tgbotapi.NewMessage(ev.Reply.ChatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyToMessageID = ev.Reply.MessageID
	msg.DisableWebPagePreview = true

	if _, err := h.sender.Send(msg); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}
