package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/gym-booking-bot/internal/config"
	"github.com/wolfman30/gym-booking-bot/internal/sheets"
	"github.com/wolfman30/gym-booking-bot/pkg/logging"
)

func writeFixture(t *testing.T) string {
	t.Helper()
	fixture := map[string][][]string{
		"課程資料":   {{"課程名稱"}, {"晨間瑜珈"}},
		"教練資料":   {{"姓名", "教練類別"}, {"陳教練", "健身教練"}},
		"場地資料":   {{"名稱"}, {"A室"}},
		"場地租借預約": {{"使用者ID", "會員姓名", "類別", "項目", "日期", "時間"}},
		"會員資料":   {{"會員編號", "姓名"}, {"A00001", "王小明"}},
	}
	data, err := json.Marshal(fixture)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "sheets.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func testConfig(t *testing.T) *appconfig.Config {
	return &appconfig.Config{
		Timezone:          "UTC",
		SheetsFixturePath: writeFixture(t),
		MemberSheet:       "會員資料",
		BookingBackend:    "sheets",
		SessionBackend:    "memory",
		SessionTTL:        30 * time.Minute,
		ConflictBuffer:    2 * time.Hour,
		ConfirmKeyword:    "確認",
		CancelKeyword:     "取消",
	}
}

func buildTestApp(t *testing.T, cfg *appconfig.Config) *App {
	t.Helper()
	reg := prometheus.NewRegistry()
	app, err := BuildApp(context.Background(), cfg, logging.Discard(), reg, reg)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	_, err = app.Provider.Refresh(context.Background())
	require.NoError(t, err)
	return app
}

func TestBuildAppServesBookingFlow(t *testing.T) {
	app := buildTestApp(t, testConfig(t))
	assert.Equal(t, []string{"團體課程", "私人教練", "場地租借"}, app.Provider.Snapshot().Names())

	body, _ := json.Marshal(map[string]string{"user_id": "U1", "member": "A00001"})
	req := httptest.NewRequest(http.MethodPost, "/v1/booking/start", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	app.Handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), "王小明")

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr = httptest.NewRecorder()
	app.Handler.ServeHTTP(rr, req)
	assert.Contains(t, rr.Body.String(), "gymbot_catalog_categories 3")
	assert.Contains(t, rr.Body.String(), "gymbot_booking_locked_users 0")
}

func TestBuildAppMemoryBookingsAndRedisSessions(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.BookingBackend = "memory"
	cfg.SessionBackend = "redis"
	cfg.RedisAddr = mr.Addr()
	app := buildTestApp(t, cfg)

	_, err := app.Engine.Start(context.Background(), "U1", "王小明")
	require.NoError(t, err)
	assert.True(t, mr.Exists("booking_session:U1"))
}

func TestBuildAppRejectsBadConfig(t *testing.T) {
	cases := map[string]func(*appconfig.Config){
		"unknown booking backend": func(c *appconfig.Config) { c.BookingBackend = "excel" },
		"unknown session backend": func(c *appconfig.Config) { c.SessionBackend = "disk" },
		"postgres without url":    func(c *appconfig.Config) { c.BookingBackend = "postgres" },
		"bad definitions":         func(c *appconfig.Config) { c.CatalogCategoriesJSON = "[" },
		"missing fixture":         func(c *appconfig.Config) { c.SheetsFixturePath = "/nonexistent/sheets.json" },
		"redis down":              func(c *appconfig.Config) { c.SessionBackend = "redis"; c.RedisAddr = "127.0.0.1:1" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig(t)
			mutate(cfg)
			reg := prometheus.NewRegistry()
			_, err := BuildApp(context.Background(), cfg, logging.Discard(), reg, reg)
			assert.Error(t, err)
		})
	}
}

func TestBuildPostgresPoolEmptyURL(t *testing.T) {
	pool, err := BuildPostgresPool(context.Background(), "", logging.Discard())
	require.NoError(t, err)
	assert.Nil(t, pool)
}

func TestBuildRedisClientDisabled(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, logging.Discard(), false))
}

func TestBuildAppWithRepoFixture(t *testing.T) {
	cfg := testConfig(t)
	cfg.SheetsFixturePath = filepath.Join("..", "..", "..", "testdata", "sheets.json")
	app := buildTestApp(t, cfg)

	snap := app.Provider.Snapshot()
	coaches, ok := snap.Category("私人教練")
	require.True(t, ok)
	assert.Equal(t, []string{"健身教練", "瑜珈老師", "拳擊教練"}, coaches.SpecialtyNames())

	ctx := context.Background()
	steps := []string{"場地租借", "A室", "2030/06/01", "11:00"}
	_, err := app.Engine.Start(ctx, "U2", "陳美麗")
	require.NoError(t, err)
	var last string
	for _, text := range steps {
		res, err := app.Engine.Handle(ctx, "U2", text)
		require.NoError(t, err)
		last = res.Reply.Text
	}
	assert.Contains(t, last, "太接近")
}

func TestBuildSheetsSourceWithoutSheets(t *testing.T) {
	src, err := BuildSheetsSource(context.Background(), &appconfig.Config{}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &sheets.MemorySource{}, src)
}
