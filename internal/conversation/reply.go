package conversation

import (
	"strings"

	"github.com/wolfman30/gym-booking-bot/internal/session"
)

// ReplyKind tells the transport how to render a Reply.
type ReplyKind string

const (
	ReplyText    ReplyKind = "text"
	ReplyOptions ReplyKind = "options"
	ReplySummary ReplyKind = "summary"
)

// Summary is the booking shown for confirmation.
type Summary struct {
	Category  string `json:"category"`
	Specialty string `json:"specialty,omitempty"`
	Item      string `json:"item"`
	Date      string `json:"date"`
	Time      string `json:"time"`
}

// Reply is the single message produced by a turn.
type Reply struct {
	Kind    ReplyKind `json:"kind"`
	Title   string    `json:"title,omitempty"`
	Text    string    `json:"text"`
	Options []string  `json:"options,omitempty"`
	Summary *Summary  `json:"summary,omitempty"`
}

// Result is the outcome of a turn.
type Result struct {
	Reply Reply         `json:"reply"`
	State session.State `json:"state"`
	// Active is false once the dialogue has ended and its session is gone.
	Active bool `json:"active"`
}

func textReply(text string) Reply {
	return Reply{Kind: ReplyText, Text: text}
}

func optionsReply(title, text string, options []string) Reply {
	return Reply{Kind: ReplyOptions, Title: title, Text: text, Options: append([]string(nil), options...)}
}

func summaryReply(s *session.Session, confirm, cancel string) Reply {
	sum := &Summary{Category: s.Category, Specialty: s.Specialty, Item: s.Item, Date: s.Date, Time: s.Time}
	var b strings.Builder
	b.WriteString("請確認您的預約：\n")
	b.WriteString("類別：" + sum.Category + "\n")
	if sum.Specialty != "" {
		b.WriteString("教練類別：" + sum.Specialty + "\n")
	}
	b.WriteString("項目：" + sum.Item + "\n")
	b.WriteString("日期：" + sum.Date + "\n")
	b.WriteString("時間：" + sum.Time + "\n\n")
	b.WriteString("輸入 '" + confirm + "' 以完成預約，或輸入 '" + cancel + "' 以取消。")
	return Reply{Kind: ReplySummary, Title: "請確認您的預約", Text: b.String(), Summary: sum}
}
