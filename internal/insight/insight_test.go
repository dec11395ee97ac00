package insight

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/v3/option"

	"github.com/lox/airquality/internal/analysis"
	"github.com/lox/airquality/internal/models"
)

func nf(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }

func testTable(t *testing.T) *analysis.Table {
	t.Helper()
	obs := []models.Observation{
		// 2013-03-04 is a Monday, 2013-03-09 a Saturday.
		{Station: "Dongsi", Year: 2013, Month: 3, Day: 4, Hour: 0, PM25: nf(100), PM10: nf(120), CO: nf(1500), Temp: nf(20), O3: nf(50)},
		{Station: "Dongsi", Year: 2013, Month: 3, Day: 4, Hour: 1, PM25: nf(80), PM10: nf(100), CO: nf(1300), Temp: nf(25), O3: nf(80)},
		{Station: "Dongsi", Year: 2013, Month: 3, Day: 9, Hour: 0, PM25: nf(60), PM10: nf(70), CO: nf(1200), Temp: nf(22), O3: nf(60)},
		{Station: "Huairou", Year: 2013, Month: 3, Day: 4, Hour: 0, PM25: nf(40), PM10: nf(50), CO: nf(900), Temp: nf(10), O3: nf(30)},
		{Station: "Huairou", Year: 2013, Month: 3, Day: 4, Hour: 1, PM25: nf(30), PM10: nf(45), CO: nf(800), Temp: nf(15), O3: nf(35)},
	}
	table, err := analysis.NewTable(obs)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	return table
}

func TestConclusions(t *testing.T) {
	facts, err := Gather(testTable(t), models.DefaultWeekdayStation)
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	got := Conclusions(facts)

	want := []string{
		"All 2 stations show a positive correlation between temperature and ozone",
		"PM2.5 at Dongsi is higher on weekdays (90.0) than on weekends (60.0).",
		"PM10 at Dongsi is higher on weekdays (110.0) than on weekends (70.0).",
		"PM2.5 averages highest at Dongsi (80.0) and lowest at Huairou (35.0).",
		"CO averages highest at Dongsi (1333.3) and lowest at Huairou (850.0).",
	}
	joined := strings.Join(got, "\n")
	for _, w := range want {
		if !strings.Contains(joined, w) {
			t.Errorf("conclusions missing %q\ngot:\n%s", w, joined)
		}
	}
}

func TestConclusions_Empty(t *testing.T) {
	table, err := analysis.NewTable(nil)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	facts, err := Gather(table, "Dongsi")
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if got := Conclusions(facts); len(got) != 0 {
		t.Errorf("Conclusions on empty table = %v, want none", got)
	}
}

func TestGather_UnknownStation(t *testing.T) {
	if _, err := Gather(testTable(t), "Haidian"); err == nil {
		t.Fatal("expected error for unknown station")
	}
}

func TestCache(t *testing.T) {
	c := NewCache(t.TempDir(), 0)
	if _, ok := c.Get("abc"); ok {
		t.Fatal("empty cache should miss")
	}
	if err := c.Set("abc", "Ozone rises with temperature."); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok := c.Get("abc")
	if !ok || got != "Ozone rises with temperature." {
		t.Errorf("Get = %q, %v", got, ok)
	}
}

func TestService_WithoutGenerator(t *testing.T) {
	in, err := NewService(nil, nil).Summarize(context.Background(), "hash", testTable(t), "Dongsi")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(in.Conclusions) == 0 {
		t.Error("expected deterministic conclusions")
	}
	if in.Narrative != "" {
		t.Errorf("Narrative = %q, want empty without a generator", in.Narrative)
	}
}

func TestService_CachedNarrative(t *testing.T) {
	cache := NewCache(t.TempDir(), 0)
	if err := cache.Set("hash", "cached summary"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	gen, err := NewGenerator("test-key")
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	in, err := NewService(gen, cache).Summarize(context.Background(), "hash", testTable(t), "Dongsi")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if in.Narrative != "cached summary" {
		t.Errorf("Narrative = %q, want cached summary", in.Narrative)
	}
}

func TestNewGenerator_RequiresKey(t *testing.T) {
	if _, err := NewGenerator(""); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestGenerator_Narrate(t *testing.T) {
	var prompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.Unmarshal(body, &req); err == nil && len(req.Messages) > 1 {
			prompt = req.Messages[1].Content
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "  Ozone tracks temperature everywhere.  "}
			}]
		}`)
	}))
	defer srv.Close()

	gen, err := NewGenerator("test-key", option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	text, err := gen.Narrate(context.Background(), []string{"fact one", "fact two"})
	if err != nil {
		t.Fatalf("Narrate: %v", err)
	}
	if text != "Ozone tracks temperature everywhere." {
		t.Errorf("text = %q", text)
	}
	if !strings.Contains(prompt, "- fact one\n- fact two") {
		t.Errorf("prompt = %q, want both facts listed", prompt)
	}
}
