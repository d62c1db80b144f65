package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/gym-booking-bot/internal/bookings"
	"github.com/wolfman30/gym-booking-bot/internal/catalog"
	"github.com/wolfman30/gym-booking-bot/internal/keylock"
	"github.com/wolfman30/gym-booking-bot/internal/session"
	"github.com/wolfman30/gym-booking-bot/internal/sheets"
	"github.com/wolfman30/gym-booking-bot/pkg/logging"
)

var taipei = time.FixedZone("Asia/Taipei", 8*3600)

type staticCatalog struct{ cat *catalog.Catalog }

func (s *staticCatalog) Snapshot() *catalog.Catalog { return s.cat }

func gymCatalog() *catalog.Catalog {
	return catalog.New([]catalog.Category{
		{Name: "團體課程", Kind: catalog.KindFlat, Items: []string{"晨間瑜珈", "飛輪有氧"}},
		{Name: "私人教練", Kind: catalog.KindSpecialized, Specialties: []catalog.Specialty{
			{Name: "健身教練", Providers: []string{"陳教練", "王教練"}},
			{Name: "瑜珈老師", Providers: []string{"林老師"}},
		}},
		{Name: "場地租借", Kind: catalog.KindFlat, Items: []string{"A室", "B室"}},
	}, time.Now())
}

type fixture struct {
	engine   *Engine
	sessions *session.MemoryStore
	source   *sheets.MemorySource
	store    *bookings.SheetStore
	catalog  *staticCatalog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	src := sheets.NewMemorySource()
	defs := catalog.DefaultDefinitions()
	for _, def := range defs {
		src.SetSheet(def.BookingTable, [][]string{bookings.Header})
	}
	store := bookings.NewSheetStore(src)
	routes := bookings.RoutesFromDefinitions(defs)
	checker := bookings.NewChecker(store, routes, 2*time.Hour, taipei, logging.Discard())
	svc := bookings.NewService(store, routes, checker, logging.Discard())
	return newFixtureWith(t, src, store, svc)
}

func newFixtureWith(t *testing.T, src *sheets.MemorySource, store *bookings.SheetStore, books Bookings) *fixture {
	t.Helper()
	sessions := session.NewMemoryStore()
	cat := &staticCatalog{cat: gymCatalog()}
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, taipei)
	engine := NewEngine(sessions, cat, books, logging.Discard(),
		WithLocation(taipei),
		WithClock(func() time.Time { return now }),
	)
	return &fixture{engine: engine, sessions: sessions, source: src, store: store, catalog: cat}
}

func (f *fixture) say(t *testing.T, text string) Result {
	t.Helper()
	res, err := f.engine.Handle(context.Background(), "U123", text)
	require.NoError(t, err)
	return res
}

func (f *fixture) start(t *testing.T) Result {
	t.Helper()
	res, err := f.engine.Start(context.Background(), "U123", "王小明")
	require.NoError(t, err)
	return res
}

func (f *fixture) sessionFor(t *testing.T) *session.Session {
	t.Helper()
	s, err := f.sessions.Get(context.Background(), "U123")
	require.NoError(t, err)
	return s
}

func (f *fixture) rows(t *testing.T, table string) []bookings.Record {
	t.Helper()
	recs, err := f.store.List(context.Background(), table)
	require.NoError(t, err)
	return recs
}

func TestVenueBookingHappyPath(t *testing.T) {
	f := newFixture(t)

	res := f.start(t)
	assert.Equal(t, ReplyOptions, res.Reply.Kind)
	assert.Equal(t, []string{"團體課程", "私人教練", "場地租借"}, res.Reply.Options)
	assert.Equal(t, session.StateCategorySelection, res.State)

	res = f.say(t, "場地租借")
	assert.Equal(t, session.StateItemSelection, res.State)
	assert.Equal(t, []string{"A室", "B室"}, res.Reply.Options)

	res = f.say(t, "A室")
	assert.Equal(t, session.StateDateInput, res.State)

	res = f.say(t, "2025/06/01")
	assert.Equal(t, session.StateTimeInput, res.State)

	res = f.say(t, "10:00")
	require.Equal(t, session.StateConfirmation, res.State)
	require.Equal(t, ReplySummary, res.Reply.Kind)
	assert.Equal(t, &Summary{Category: "場地租借", Item: "A室", Date: "2025-06-01", Time: "10:00"}, res.Reply.Summary)

	res = f.say(t, "確認")
	assert.Equal(t, session.StateCompleted, res.State)
	assert.False(t, res.Active)
	assert.Equal(t, "✅ 您的 場地租借 - A室 預約已成功記錄！", res.Reply.Text)

	recs := f.rows(t, "場地租借預約")
	require.Len(t, recs, 1)
	assert.Equal(t, bookings.Record{UserID: "U123", DisplayName: "王小明", Category: "場地租借", Item: "A室", Date: "2025-06-01", Time: "10:00"}, recs[0])
	assert.Nil(t, f.sessionFor(t))
}

func TestConflictKeepsUserInTimeInput(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Append(context.Background(), "場地租借預約",
		bookings.Record{UserID: "U999", Category: "場地租借", Item: "A室", Date: "2025-06-01", Time: "10:00"}))

	f.start(t)
	f.say(t, "場地租借")
	f.say(t, "A室")
	f.say(t, "2025-06-01")

	res := f.say(t, "11:00")
	assert.Equal(t, session.StateTimeInput, res.State)
	assert.Equal(t, msgConflict, res.Reply.Text)
	assert.Len(t, f.rows(t, "場地租借預約"), 1)

	res = f.say(t, "12:00")
	assert.Equal(t, session.StateConfirmation, res.State)
}

func TestCancelFromDateInput(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.say(t, "團體課程")
	f.say(t, "晨間瑜珈")
	require.Equal(t, session.StateDateInput, f.sessionFor(t).State)

	res := f.say(t, "取消")
	assert.Equal(t, session.StateCancelled, res.State)
	assert.Equal(t, msgCancelled, res.Reply.Text)
	assert.False(t, res.Active)
	assert.Nil(t, f.sessionFor(t))
	assert.Empty(t, f.rows(t, "團體課程預約"))
}

func TestEngineCancelWithoutSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Cancel(context.Background(), "U123")
	assert.ErrorIs(t, err, ErrNoSession)

	f.start(t)
	res, err := f.engine.Cancel(context.Background(), "U123")
	require.NoError(t, err)
	assert.Equal(t, session.StateCancelled, res.State)
	assert.Nil(t, f.sessionFor(t))
}

func TestCoachProvidersMatchSpecialty(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	res := f.say(t, "私人教練")
	assert.Equal(t, session.StateSpecialtySelection, res.State)
	assert.Equal(t, []string{"健身教練", "瑜珈老師"}, res.Reply.Options)

	res = f.say(t, "健身教練")
	assert.Equal(t, session.StateProviderSelection, res.State)
	assert.Equal(t, []string{"陳教練", "王教練"}, res.Reply.Options)

	res = f.say(t, "林老師")
	assert.Equal(t, session.StateProviderSelection, res.State, "provider from another specialty is rejected")
	assert.Equal(t, []string{"陳教練", "王教練"}, res.Reply.Options)

	res = f.say(t, "王教練")
	assert.Equal(t, session.StateDateInput, res.State)
	f.say(t, "2025-06-01")
	res = f.say(t, "9:30")
	require.Equal(t, ReplySummary, res.Reply.Kind)
	assert.Equal(t, "健身教練", res.Reply.Summary.Specialty)
	assert.Equal(t, "09:30", res.Reply.Summary.Time)
	assert.Contains(t, res.Reply.Text, "教練類別：健身教練")

	f.say(t, "確認")
	recs := f.rows(t, "私人教練預約")
	require.Len(t, recs, 1)
	assert.Equal(t, "王教練", recs[0].Item)
}

func TestInvalidInputsStayPut(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	res := f.say(t, "游泳池")
	assert.Equal(t, session.StateCategorySelection, res.State)
	assert.Equal(t, "抱歉，沒有 '游泳池' 這個類別，請重新選擇。", res.Reply.Text)
	assert.Len(t, res.Reply.Options, 3)

	f.say(t, "私人教練")
	res = f.say(t, "游泳教練")
	assert.Equal(t, session.StateSpecialtySelection, res.State)

	f.say(t, "瑜珈老師")
	f.say(t, "林老師")
	res = f.say(t, "next friday")
	assert.Equal(t, session.StateDateInput, res.State)
	assert.Equal(t, msgBadDate, res.Reply.Text)

	f.say(t, "2025-06-01")
	res = f.say(t, "25:00")
	assert.Equal(t, session.StateTimeInput, res.State)
	assert.Equal(t, msgBadTime, res.Reply.Text)

	f.say(t, "10：00")
	res = f.say(t, "好")
	assert.Equal(t, session.StateConfirmation, res.State)
	assert.Equal(t, "請輸入 '確認' 或 '取消'。", res.Reply.Text)
}

func TestItemOutsideCategoryRejected(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.say(t, "團體課程")

	res := f.say(t, "A室")
	assert.Equal(t, session.StateItemSelection, res.State)
	assert.Equal(t, "抱歉，'團體課程' 類別下沒有 'A室' 這個項目，請重新選擇。", res.Reply.Text)
}

func TestPastTimeRejected(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.say(t, "場地租借")
	f.say(t, "B室")
	f.say(t, "2025-05-01")

	res := f.say(t, "08:59")
	assert.Equal(t, session.StateTimeInput, res.State)
	assert.Equal(t, msgPastTime, res.Reply.Text)

	res = f.say(t, "09:00")
	assert.Equal(t, session.StateConfirmation, res.State)
}

func TestEmptyCatalogRefusesStart(t *testing.T) {
	f := newFixture(t)
	f.catalog.cat = catalog.Empty()

	res := f.start(t)
	assert.Equal(t, msgNoCategories, res.Reply.Text)
	assert.False(t, res.Active)
	assert.Nil(t, f.sessionFor(t))
}

func TestEmptyCategoryStaysInSelection(t *testing.T) {
	f := newFixture(t)
	f.catalog.cat = catalog.New([]catalog.Category{
		{Name: "場地租借", Kind: catalog.KindFlat, Items: []string{}},
		{Name: "團體課程", Kind: catalog.KindFlat, Items: []string{"晨間瑜珈"}},
	}, time.Now())
	f.start(t)

	res := f.say(t, "場地租借")
	assert.Equal(t, session.StateCategorySelection, res.State)
	assert.Equal(t, "場地租借 目前沒有可預約的項目，請重新選擇類別。", res.Reply.Text)
}

func TestStartWhileActive(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.say(t, "場地租借")

	res := f.start(t)
	assert.Equal(t, msgAlreadyInDialogue, res.Reply.Text)
	assert.Equal(t, session.StateItemSelection, res.State)
	assert.True(t, res.Active)
	assert.Equal(t, "場地租借", f.sessionFor(t).Category)
}

func TestHandleWithoutSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Handle(context.Background(), "U123", "場地租借")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestCategoryRemovedMidDialogue(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.say(t, "場地租借")
	f.catalog.cat = catalog.New([]catalog.Category{{Name: "團體課程", Kind: catalog.KindFlat, Items: []string{"晨間瑜珈"}}}, time.Now())

	res := f.say(t, "A室")
	assert.Equal(t, session.StateItemSelection, res.State)
	assert.Contains(t, res.Reply.Text, "場地租借 目前沒有可預約的項目")
}

type stubBookings struct {
	conflict    bool
	conflictErr error
	commitErr   error
	commits     []bookings.Record
}

func (s *stubBookings) HasConflict(context.Context, string, string, time.Time) (bool, error) {
	return s.conflict, s.conflictErr
}

func (s *stubBookings) Commit(_ context.Context, rec bookings.Record) error {
	s.commits = append(s.commits, rec)
	return s.commitErr
}

func walkToConfirmation(t *testing.T, f *fixture) {
	t.Helper()
	f.start(t)
	f.say(t, "場地租借")
	f.say(t, "A室")
	f.say(t, "2025-06-01")
	require.Equal(t, session.StateConfirmation, f.say(t, "10:00").State)
}

func TestWriteFailureStillEndsDialogue(t *testing.T) {
	books := &stubBookings{commitErr: errors.New("sheets quota exceeded")}
	f := newFixtureWith(t, nil, nil, books)
	walkToConfirmation(t, f)

	res := f.say(t, "確認")
	assert.Equal(t, msgWriteFailed, res.Reply.Text)
	assert.Equal(t, session.StateCompleted, res.State)
	assert.False(t, res.Active)
	assert.Nil(t, f.sessionFor(t))
	assert.Len(t, books.commits, 1)
}

func TestUnknownTableEndsDialogue(t *testing.T) {
	books := &stubBookings{commitErr: bookings.ErrUnknownCategory}
	f := newFixtureWith(t, nil, nil, books)
	walkToConfirmation(t, f)

	res := f.say(t, "確認")
	assert.Equal(t, msgNoTable, res.Reply.Text)
	assert.Nil(t, f.sessionFor(t))
}

func TestSlotTakenAtCommitReturnsToTimeInput(t *testing.T) {
	books := &stubBookings{commitErr: bookings.ErrSlotTaken}
	f := newFixtureWith(t, nil, nil, books)
	walkToConfirmation(t, f)

	res := f.say(t, "確認")
	assert.Equal(t, session.StateTimeInput, res.State)
	assert.Equal(t, msgSlotTaken, res.Reply.Text)
	assert.True(t, res.Active)
	s := f.sessionFor(t)
	require.NotNil(t, s)
	assert.Equal(t, "A室", s.Item)
	assert.Empty(t, s.Time)
}

func TestCheckerFailureKeepsTimeInput(t *testing.T) {
	books := &stubBookings{conflictErr: errors.New("sheet unavailable")}
	f := newFixtureWith(t, nil, nil, books)
	f.start(t)
	f.say(t, "場地租借")
	f.say(t, "A室")
	f.say(t, "2025-06-01")

	res := f.say(t, "10:00")
	assert.Equal(t, session.StateTimeInput, res.State)
	assert.Equal(t, msgCannotVerify, res.Reply.Text)
}

func TestSessionPersistsSelections(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.say(t, "私人教練")
	f.say(t, "健身教練")
	f.say(t, "陳教練")

	s := f.sessionFor(t)
	require.NotNil(t, s)
	assert.Equal(t, "王小明", s.DisplayName)
	assert.Equal(t, "私人教練", s.Category)
	assert.Equal(t, "健身教練", s.Specialty)
	assert.Equal(t, "陳教練", s.Item)
	assert.Equal(t, session.StateDateInput, s.State)
	assert.False(t, s.UpdatedAt.IsZero())
}

func TestCustomKeywords(t *testing.T) {
	books := &stubBookings{}
	sessions := session.NewMemoryStore()
	engine := NewEngine(sessions, &staticCatalog{cat: gymCatalog()}, books, logging.Discard(),
		WithKeywords("ok", "stop"),
		WithLocation(taipei),
		WithClock(func() time.Time { return time.Date(2025, 5, 1, 9, 0, 0, 0, taipei) }),
	)
	ctx := context.Background()
	_, err := engine.Start(ctx, "U1", "")
	require.NoError(t, err)

	res, err := engine.Handle(ctx, "U1", "取消")
	require.NoError(t, err)
	assert.Equal(t, session.StateCategorySelection, res.State, "default keyword is ordinary text once overridden")

	res, err = engine.Handle(ctx, "U1", "stop")
	require.NoError(t, err)
	assert.Equal(t, session.StateCancelled, res.State)
}

func TestStartAssignsSessionID(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	first := f.sessionFor(t)
	require.NotNil(t, first)
	_, err := uuid.Parse(first.ID)
	require.NoError(t, err)

	f.say(t, "取消")
	f.start(t)
	second := f.sessionFor(t)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestSharedLockerSerializesTurns(t *testing.T) {
	locks := keylock.New()
	engine := NewEngine(session.NewMemoryStore(), &staticCatalog{cat: gymCatalog()}, &stubBookings{}, logging.Discard(),
		WithLocker(locks))

	unlock := locks.Lock("U1")
	done := make(chan struct{})
	go func() {
		_, _ = engine.Start(context.Background(), "U1", "王小明")
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("turn ran while the shared lock was held")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("turn did not resume")
	}
}
