package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BTreeMap/MindScreen/internal/models"
	"github.com/BTreeMap/MindScreen/internal/store"
)

// errFatal is panicked by mockTestingT.Fatalf to stop the helper like t.Fatalf would.
type errFatal struct{}

type mockTestingT struct {
	failed   bool
	errorMsg string
	helper   bool
}

func (m *mockTestingT) Helper() {
	m.helper = true
}

func (m *mockTestingT) Errorf(format string, args ...any) {
	m.failed = true
	m.errorMsg = fmt.Sprintf(format, args...)
}

func (m *mockTestingT) Fatalf(format string, args ...any) {
	m.failed = true
	m.errorMsg = fmt.Sprintf(format, args...)
	panic(errFatal{})
}

// runMock calls fn with a fresh mock and reports whether fn aborted via Fatalf.
func runMock(fn func(m *mockTestingT)) (m *mockTestingT, fatal bool) {
	m = &mockTestingT{}
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(errFatal); !ok {
				panic(r)
			}
			fatal = true
		}
	}()
	fn(m)
	return m, false
}

func TestAssertHTTPStatus(t *testing.T) {
	tests := []struct {
		name       string
		expected   int
		actual     int
		shouldFail bool
	}{
		{"matching status codes", 200, 200, false},
		{"different status codes", 200, 404, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockT, _ := runMock(func(m *mockTestingT) {
				AssertHTTPStatus(m, tt.expected, tt.actual, "test context")
			})
			if tt.shouldFail != mockT.failed {
				t.Errorf("expected failed=%v, got %v (%s)", tt.shouldFail, mockT.failed, mockT.errorMsg)
			}
			if !mockT.helper {
				t.Error("expected Helper to be called")
			}
		})
	}
}

func TestCreateHTTPRequest(t *testing.T) {
	req := CreateHTTPRequest(t, http.MethodPost, "/v1/sessions", map[string]string{"user_id": "u1"})
	if req.Method != http.MethodPost || req.URL.Path != "/v1/sessions" {
		t.Errorf("unexpected request %s %s", req.Method, req.URL.Path)
	}
	if req.Header.Get("Content-Type") != "application/json" {
		t.Error("expected JSON content type header")
	}
	if req.ContentLength == 0 {
		t.Error("expected a JSON body")
	}

	raw := CreateHTTPRequest(t, http.MethodPost, "/x", "{broken")
	if raw.ContentLength != int64(len("{broken")) {
		t.Errorf("expected string body to be sent verbatim, got length %d", raw.ContentLength)
	}

	empty := CreateHTTPRequest(t, http.MethodGet, "/x", nil)
	if empty.ContentLength != 0 {
		t.Errorf("expected empty body, got length %d", empty.ContentLength)
	}
}

func TestDoJSONAndDecodeEnvelope(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"status":"ok","result":{"session_id":"s1"}}`))
	})

	rr := DoJSON(t, h, http.MethodPost, "/v1/sessions", nil)
	AssertHTTPStatus(t, http.StatusCreated, rr.Code, "DoJSON")
	env := DecodeEnvelope(t, rr)
	AssertEnvelopeStatus(t, env, models.APIStatusOK)

	var view models.SessionView
	MustUnmarshalJSON(t, env.Result, &view)
	if view.SessionID != "s1" {
		t.Errorf("expected session s1, got %q", view.SessionID)
	}
}

func TestDecodeEnvelopeInvalidJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.Header().Set("Content-Type", "application/json")
	rr.Body.WriteString("not json")

	mockT, fatal := runMock(func(m *mockTestingT) {
		DecodeEnvelope(m, rr)
	})
	if !fatal || !mockT.failed {
		t.Error("expected invalid JSON to abort the test")
	}
}

func TestAssertEnvelopeStatus(t *testing.T) {
	mockT, _ := runMock(func(m *mockTestingT) {
		AssertEnvelopeStatus(m, Envelope{Status: "error", Message: "boom"}, models.APIStatusOK)
	})
	if !mockT.failed {
		t.Error("expected mismatched status to fail")
	}
}

func TestSeedAssessments(t *testing.T) {
	st := store.NewInMemoryStore()
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	ids := SeedAssessments(t, st, "u1", 3, base)
	if len(ids) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(ids))
	}

	list, err := st.ListAssessments("u1")
	if err != nil {
		t.Fatalf("ListAssessments: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 stored assessments, got %d", len(list))
	}
	if list[0].Result.ID != ids[2] {
		t.Errorf("expected newest seeded result first, got %s", list[0].Result.ID)
	}

	// Seeding the same user again collides on ids.
	mockT, fatal := runMock(func(m *mockTestingT) {
		SeedAssessments(m, st, "u1", 1, base)
	})
	if !fatal || !mockT.failed {
		t.Error("expected duplicate seed to abort")
	}
}

func TestMustJSONRoundTrip(t *testing.T) {
	data := MustMarshalJSON(t, models.ChatMessage{Role: models.ChatRoleUser, Content: "hi"})
	var msg models.ChatMessage
	MustUnmarshalJSON(t, data, &msg)
	if msg.Content != "hi" {
		t.Errorf("unexpected message %+v", msg)
	}

	mockT, fatal := runMock(func(m *mockTestingT) {
		MustMarshalJSON(m, make(chan int))
	})
	if !fatal || !mockT.failed {
		t.Error("expected unmarshalable value to abort")
	}
}
