package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/gym-booking-bot/internal/bookings"
	"github.com/wolfman30/gym-booking-bot/internal/catalog"
	"github.com/wolfman30/gym-booking-bot/internal/session"
)

const (
	titleCategory  = "請選擇預約類別"
	titleSpecialty = "請選擇教練類別"
	titleProvider  = "請選擇教練"
	titleItem      = "請選擇預約項目"

	msgAskCategory       = "您想要預約什麼？"
	msgAskSpecialty      = "您想預約哪一類教練？"
	msgAskProvider       = "您想預約哪位教練？"
	msgAskItem           = "您想預約哪個項目？"
	msgAskDate           = "請輸入您想預約的日期 (YYYY-MM-DD)。"
	msgAskTime           = "請輸入預約時間 (HH:MM)。"
	msgNoCategories      = "目前沒有可預約的類別，請稍後再試。"
	msgAlreadyInDialogue = "您已經在預約流程中，請繼續操作。"
	msgUnknownCategory   = "抱歉，沒有 '%s' 這個類別，請重新選擇。"
	msgCategoryEmpty     = "%s 目前沒有可預約的項目，請重新選擇類別。"
	msgCategoryGone      = "%s 目前沒有可預約的項目，請輸入 '%s' 後重新預約。"
	msgUnknownSpecialty  = "抱歉，'%s' 類別下沒有 '%s' 這個教練類別，請重新選擇。"
	msgUnknownProvider   = "抱歉，'%s' 下沒有 '%s' 這位教練，請重新選擇。"
	msgUnknownItem       = "抱歉，'%s' 類別下沒有 '%s' 這個項目，請重新選擇。"
	msgBadDate           = "日期格式不正確，請輸入 YYYY-MM-DD 或 YYYY/MM/DD。"
	msgBadTime           = "時間格式不正確，請輸入預約時間 (HH:MM)。"
	msgPastTime          = "無法預約過去的時間，請重新輸入預約時間 (HH:MM)。"
	msgConflict          = "該時段與現有預約太接近，請選擇其他時間 (HH:MM)。"
	msgCannotVerify      = "暫時無法確認時段是否可預約，請稍後再試。"
	msgConfirmOrCancel   = "請輸入 '%s' 或 '%s'。"
	msgBooked            = "✅ 您的 %s - %s 預約已成功記錄！"
	msgSlotTaken         = "很抱歉，該時段剛剛已被預約，請重新輸入預約時間 (HH:MM)。"
	msgNoTable           = "⚠ 無法確定要將此預約記錄到哪個工作表。"
	msgWriteFailed       = "⚠ 儲存預約資料時發生錯誤，請稍後再試。"
	msgCancelled         = "❌ 您的預約已取消。"
	msgInternalError     = "⚠ 系統發生錯誤，請輸入 '我要預約' 重新開始。"
)

// turn is what a step handler decided. err marks a defect.
type turn struct {
	reply   Reply
	outcome string
	err     error
}

func advance(reply Reply) turn { return turn{reply: reply, outcome: "advanced"} }

func stay(reply Reply) turn { return turn{reply: reply, outcome: "rejected"} }

func (e *Engine) selectCategory(s *session.Session, text string) turn {
	snapshot := e.catalog.Snapshot()
	names := snapshot.Names()
	cat, ok := snapshot.Category(text)
	if !ok {
		return stay(optionsReply(titleCategory, fmt.Sprintf(msgUnknownCategory, text), names))
	}
	if cat.Empty() {
		return stay(optionsReply(titleCategory, fmt.Sprintf(msgCategoryEmpty, cat.Name), names))
	}

	s.Category = cat.Name
	if cat.Kind == catalog.KindSpecialized {
		if err := fire(s, TriggerSelectCategory, session.StateSpecialtySelection); err != nil {
			return turn{err: err}
		}
		return advance(optionsReply(titleSpecialty, msgAskSpecialty, cat.SpecialtyNames()))
	}
	if err := fire(s, TriggerSelectCategory, session.StateItemSelection); err != nil {
		return turn{err: err}
	}
	return advance(optionsReply(titleItem, msgAskItem, cat.Items))
}

// liveCategory re-reads the session's category from the current snapshot.
func (e *Engine) liveCategory(s *session.Session) (catalog.Category, *turn) {
	cat, ok := e.catalog.Snapshot().Category(s.Category)
	if !ok || cat.Empty() {
		t := stay(textReply(fmt.Sprintf(msgCategoryGone, s.Category, e.cancel)))
		return catalog.Category{}, &t
	}
	return cat, nil
}

func (e *Engine) selectSpecialty(s *session.Session, text string) turn {
	cat, gone := e.liveCategory(s)
	if gone != nil {
		return *gone
	}
	spec, ok := cat.Specialty(text)
	if !ok || len(spec.Providers) == 0 {
		return stay(optionsReply(titleSpecialty, fmt.Sprintf(msgUnknownSpecialty, s.Category, text), cat.SpecialtyNames()))
	}
	s.Specialty = spec.Name
	if err := fire(s, TriggerSelectSpecialty, session.StateProviderSelection); err != nil {
		return turn{err: err}
	}
	return advance(optionsReply(titleProvider, msgAskProvider, spec.Providers))
}

func (e *Engine) selectProvider(s *session.Session, text string) turn {
	cat, gone := e.liveCategory(s)
	if gone != nil {
		return *gone
	}
	spec, ok := cat.Specialty(s.Specialty)
	if !ok {
		return stay(textReply(fmt.Sprintf(msgCategoryGone, s.Specialty, e.cancel)))
	}
	if !spec.HasProvider(text) {
		return stay(optionsReply(titleProvider, fmt.Sprintf(msgUnknownProvider, spec.Name, text), spec.Providers))
	}
	s.Item = text
	if err := fire(s, TriggerSelectProvider, session.StateDateInput); err != nil {
		return turn{err: err}
	}
	return advance(textReply(msgAskDate))
}

func (e *Engine) selectItem(s *session.Session, text string) turn {
	cat, gone := e.liveCategory(s)
	if gone != nil {
		return *gone
	}
	if !cat.HasItem(text) {
		return stay(optionsReply(titleItem, fmt.Sprintf(msgUnknownItem, s.Category, text), cat.Items))
	}
	s.Item = text
	if err := fire(s, TriggerSelectItem, session.StateDateInput); err != nil {
		return turn{err: err}
	}
	return advance(textReply(msgAskDate))
}

func (e *Engine) enterDate(s *session.Session, text string) turn {
	date, err := bookings.ParseDate(text)
	if err != nil {
		return stay(textReply(msgBadDate))
	}
	s.Date = date
	if err := fire(s, TriggerEnterDate, session.StateTimeInput); err != nil {
		return turn{err: err}
	}
	return advance(textReply(msgAskTime))
}

func (e *Engine) enterTime(ctx context.Context, s *session.Session, text string) turn {
	clock, err := bookings.ParseClock(text)
	if err != nil {
		return stay(textReply(msgBadTime))
	}
	at, err := bookings.ParseSlot(s.Date, clock, e.loc)
	if err != nil {
		return stay(textReply(msgBadTime))
	}
	if at.Before(e.now()) {
		return stay(textReply(msgPastTime))
	}

	conflict, err := e.bookings.HasConflict(ctx, s.Category, s.Item, at)
	if err != nil {
		e.logger.Error("conflict check failed", "user_id", s.UserID, "session_id", s.ID, "category", s.Category, "error", err)
		return stay(textReply(msgCannotVerify))
	}
	if conflict {
		return turn{reply: textReply(msgConflict), outcome: "conflict"}
	}

	s.Time = clock
	if err := fire(s, TriggerEnterTime, session.StateConfirmation); err != nil {
		return turn{err: err}
	}
	return advance(summaryReply(s, e.confirm, e.cancel))
}

// confirmBooking commits the booking. Any failure other than a freshly
// taken slot still ends the dialogue.
func (e *Engine) confirmBooking(ctx context.Context, s *session.Session) turn {
	rec := bookings.Record{
		UserID:      s.UserID,
		DisplayName: s.DisplayName,
		Category:    s.Category,
		Item:        s.Item,
		Date:        s.Date,
		Time:        s.Time,
	}
	err := e.bookings.Commit(ctx, rec)
	if errors.Is(err, bookings.ErrSlotTaken) {
		s.Time = ""
		if ferr := fire(s, TriggerConfirm, session.StateTimeInput); ferr != nil {
			return turn{err: ferr}
		}
		return turn{reply: textReply(msgSlotTaken), outcome: "slot_taken"}
	}
	if ferr := fire(s, TriggerConfirm, session.StateCompleted); ferr != nil {
		return turn{err: ferr}
	}
	switch {
	case err == nil:
		return turn{reply: textReply(fmt.Sprintf(msgBooked, rec.Category, rec.Item)), outcome: "completed"}
	case errors.Is(err, bookings.ErrUnknownCategory):
		return turn{reply: textReply(msgNoTable), outcome: "failed"}
	default:
		e.logger.Error("booking commit failed", "user_id", s.UserID, "session_id", s.ID, "category", s.Category, "error", err)
		return turn{reply: textReply(msgWriteFailed), outcome: "failed"}
	}
}
