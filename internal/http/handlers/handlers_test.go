package handlers

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-recipe-bot/internal/clock"
	"github.com/tbourn/go-recipe-bot/internal/repo"
	"github.com/tbourn/go-recipe-bot/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:h_%s?mode=memory&cache=shared&_pragma=busy_timeout(10000)", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// fakeBot records pipeline calls.
type fakeBot struct {
	Events    []services.InboundEvent
	HandleErr error
	DailyErr  error
	DailySent int
}

func (f *fakeBot) Handle(_ context.Context, ev services.InboundEvent) error {
	f.Events = append(f.Events, ev)
	return f.HandleErr
}

func (f *fakeBot) SendDailyRecipe(context.Context) error {
	if f.DailyErr != nil {
		return f.DailyErr
	}
	f.DailySent++
	return nil
}

// fakeJobs is a JobController over a static job table.
type fakeJobs struct {
	States  map[string]string
	Nexts   map[string]time.Time
	Fired   []string
	FireErr error
}

func (f *fakeJobs) Fire(_ context.Context, name string) error {
	if f.FireErr != nil {
		return f.FireErr
	}
	f.Fired = append(f.Fired, name)
	return nil
}

func (f *fakeJobs) Next(name string) (time.Time, bool) {
	next, ok := f.Nexts[name]
	return next, ok
}

func (f *fakeJobs) State(name string) (string, bool) {
	state, ok := f.States[name]
	return state, ok
}

type env struct {
	h    *Handlers
	bot  *fakeBot
	jobs *fakeJobs
	db   *gorm.DB
	clk  *clock.Fake
	r    *gin.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := newTestDB(t)
	bot := &fakeBot{}
	jobs := &fakeJobs{States: map[string]string{}, Nexts: map[string]time.Time{}}
	clk := clock.NewFake(time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC))
	h := New(db, bot, jobs, clk, time.UTC, "verify-secret")

	r := gin.New()
	r.GET("/webhook", h.VerifyWebhook)
	r.POST("/webhook", h.ReceiveWebhook)
	r.POST("/ops/seed-recipes", h.SeedRecipes)
	r.POST("/ops/send-recipe", h.SendRecipe)
	r.POST("/ops/jobs/:name/fire", h.FireJob)
	r.GET("/ops/jobs/:name", h.JobStatus)
	r.GET("/ops/receipts", h.ListReceipts)
	r.GET("/ops/stats", h.GetStats)

	return &env{h: h, bot: bot, jobs: jobs, db: db, clk: clk, r: r}
}

func (e *env) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}
