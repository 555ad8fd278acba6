package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-recipe-bot/internal/clock"
	"github.com/tbourn/go-recipe-bot/internal/config"
	"github.com/tbourn/go-recipe-bot/internal/repo"
	"github.com/tbourn/go-recipe-bot/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubBot struct{ handled int }

func (s *stubBot) Handle(context.Context, services.InboundEvent) error { s.handled++; return nil }
func (s *stubBot) SendDailyRecipe(context.Context) error               { return nil }

type stubJobs struct{}

func (stubJobs) Fire(context.Context, string) error { return nil }
func (stubJobs) Next(string) (time.Time, bool)      { return time.Time{}, false }
func (stubJobs) State(string) (string, bool)        { return "", false }

func newRouter(t *testing.T, mutate func(*config.Config)) (*gin.Engine, *stubBot) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:rt_%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.Config{
		Timezone:  "UTC",
		RateRPS:   100,
		RateBurst: 100,
		WhatsApp:  config.WhatsAppConfig{VerifyToken: "verify-secret"},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	bot := &stubBot{}
	r := gin.New()
	RegisterRoutes(r, db, bot, stubJobs{}, clock.NewFake(time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)), cfg)
	return r, bot
}

func get(r *gin.Engine, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	r, _ := newRouter(t, nil)

	if w := get(r, "/health"); w.Code != http.StatusOK {
		t.Fatalf("health: %d", w.Code)
	}
	w := get(r, "/metrics")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatalf("metrics: %d", w.Code)
	}
}

func TestRouter_WebhookWiredAndRequestID(t *testing.T) {
	r, bot := newRouter(t, nil)

	w := get(r, "/webhook?hub.mode=subscribe&hub.verify_token=verify-secret&hub.challenge=99")
	if w.Code != http.StatusOK || w.Body.String() != "99" {
		t.Fatalf("verify: %d %q", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing request id header")
	}

	payload := `{"entry":[{"changes":[{"value":{"messages":[{"id":"wamid.1","from":"u","type":"text","text":{"body":"hi"}}]}}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || bot.handled != 1 {
		t.Fatalf("receive: %d handled=%d", rec.Code, bot.handled)
	}
}

func TestRouter_WebhookNeverRateLimited(t *testing.T) {
	r, _ := newRouter(t, func(cfg *config.Config) {
		cfg.RateRPS = 0.1
		cfg.RateBurst = 1
	})

	// Well past any token bucket: the webhook must keep answering.
	for i := 0; i < 10; i++ {
		w := get(r, "/webhook?hub.mode=subscribe&hub.verify_token=verify-secret&hub.challenge=1")
		if w.Code != http.StatusOK {
			t.Fatalf("webhook throttled on request %d: %d", i, w.Code)
		}
	}

	// While the ops group is.
	var throttled bool
	for i := 0; i < 5; i++ {
		if w := get(r, "/ops/stats"); w.Code == http.StatusTooManyRequests {
			throttled = true
		}
	}
	if !throttled {
		t.Fatalf("ops endpoints never throttled")
	}
}

func TestRouter_OpsNoStoreAndFallbacks(t *testing.T) {
	r, _ := newRouter(t, nil)

	w := get(r, "/ops/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("stats: %d %s", w.Code, w.Body.String())
	}
	if cc := w.Header().Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Fatalf("cache-control = %q", cc)
	}

	if w := get(r, "/nope"); w.Code != http.StatusNotFound {
		t.Fatalf("no route: %d", w.Code)
	}
	req := httptest.NewRequest(http.MethodDelete, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("no method: %d", rec.Code)
	}
}
