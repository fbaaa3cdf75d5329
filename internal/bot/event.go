package bot

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/text/encoding/charmap"
)

// ErrMissingSource means an update carried text but no identifiable sender or chat.
var ErrMissingSource = errors.New("missing source identity")

type EventKind int

const (
	EventOther EventKind = iota
	EventText
)

// Reply addresses the message a response should be attached to.
type Reply struct {
	ChatID    int64
	MessageID int
}

type Event struct {
	Kind     EventKind
	UpdateID int
	Text     string
	GroupID  string
	UserID   string
	Reply    Reply
}

// BuildEvent turns a Telegram update into an Event. Updates that are not
// text messages become EventOther.
func BuildEvent(u tgbotapi.Update) (Event, error) {
	msg := u.Message
	if msg == nil || msg.Text == "" {
		return Event{Kind: EventOther, UpdateID: u.UpdateID}, nil
	}
	if msg.From == nil || msg.Chat == nil {
		return Event{}, ErrMissingSource
	}

	userID := strconv.FormatInt(msg.From.ID, 10)
	groupID := userID
	if msg.Chat.IsGroup() || msg.Chat.IsSuperGroup() {
		groupID = strconv.FormatInt(msg.Chat.ID, 10)
	}

	return Event{
		Kind:     EventText,
		UpdateID: u.UpdateID,
		Text:     strings.TrimSpace(fixEncoding(msg.Text)),
		GroupID:  groupID,
		UserID:   userID,
		Reply:    Reply{ChatID: msg.Chat.ID, MessageID: msg.MessageID},
	}, nil
}

func fixEncoding(s string) string {
	if utf8.ValidString(s) {
		return s
	}

	// not UTF-8: try windows-1251
	decoder := charmap.Windows1251.NewDecoder()
	fixed, err := decoder.String(s)
	if err == nil && utf8.ValidString(fixed) {
		return fixed
	}

	return strings.ToValidUTF8(s, "")
}
