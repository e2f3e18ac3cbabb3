package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandler_ExposesCollectors(t *testing.T) {
	ChatTurn("ok")
	ActionOutcome("add_to_list", "ok")
	Categorized("shopping", "llm")
	ObserveLLM("chat", time.Now(), nil)
	ObserveHTTP("GET", "/api/reminders/{userId}", 200, 5*time.Millisecond)
	JobProcessed("recategorize_item", "completed")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`gabai_chat_turns_total{result="ok"}`,
		`gabai_action_outcomes_total{status="ok",type="add_to_list"}`,
		`gabai_categorize_total{list_type="shopping",source="llm"}`,
		`gabai_llm_request_duration_seconds_count{operation="chat",outcome="ok"}`,
		`gabai_http_requests_total{code="200",method="GET",route="/api/reminders/{userId}"}`,
		`gabai_worker_jobs_processed_total{result="completed",type="recategorize_item"}`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
