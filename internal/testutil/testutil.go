// Package testutil provides common HTTP and JSON helpers for MindScreen tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/BTreeMap/MindScreen/internal/models"
)

// T is the subset of *testing.T the helpers need.
type T interface {
	Helper()
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
}

// Envelope mirrors models.APIResponse with the result left undecoded.
type Envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// AssessmentSaver is the store capability SeedAssessments needs.
type AssessmentSaver interface {
	SaveAssessment(a models.StoredAssessment) error
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// CreateHTTPRequest creates an HTTP request with an optional JSON body.
// A string body is sent verbatim so tests can post malformed JSON.
func CreateHTTPRequest(t T, method, url string, body interface{}) *http.Request {
	t.Helper()
	reqBody := bytes.NewBuffer(nil)
	switch b := body.(type) {
	case nil:
	case string:
		reqBody.WriteString(b)
	default:
		reqBody.Write(MustMarshalJSON(t, b))
	}

	req := httptest.NewRequest(method, url, reqBody)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DoJSON serves one request against h and returns the recorded response.
func DoJSON(t T, h http.Handler, method, url string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, CreateHTTPRequest(t, method, url, body))
	return rr
}

// DecodeEnvelope checks the content type and decodes the response envelope.
func DecodeEnvelope(t T, rr *httptest.ResponseRecorder) Envelope {
	t.Helper()
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
	var env Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode JSON response %q: %v", rr.Body.String(), err)
	}
	return env
}

// AssertEnvelopeStatus validates the status field of a decoded envelope.
func AssertEnvelopeStatus(t T, env Envelope, expected models.APIStatus) {
	t.Helper()
	if env.Status != string(expected) {
		t.Errorf("expected status '%s', got '%s' (message %q)", expected, env.Status, env.Message)
	}
}

// SeedAssessments stores n minimal results for userID, one hour apart starting at base,
// and returns their ids oldest first.
func SeedAssessments(t T, st AssessmentSaver, userID string, n int, base time.Time) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s-seed-%d", userID, i)
		ts := base.Add(time.Duration(i) * time.Hour)
		err := st.SaveAssessment(models.StoredAssessment{
			Result: models.AssessmentResult{
				ID:               id,
				UserID:           userID,
				PrimaryCondition: models.ConditionGeneral,
				Severity:         models.SeverityMild,
				RiskLevel:        models.RiskLow,
				Recommendations:  []string{"Practice regular exercise"},
				Timestamp:        ts,
			},
			Answers: []models.Answer{
				{QuestionID: "phq2_1", Value: models.ChoiceValue(0, "Not at all"), Timestamp: ts},
			},
		})
		if err != nil {
			t.Fatalf("failed to seed assessment %s: %v", id, err)
		}
		ids = append(ids, id)
	}
	return ids
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t T, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
