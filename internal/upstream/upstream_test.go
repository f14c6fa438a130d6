package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFormatSequenceNumber(t *testing.T) {
	cases := map[int]string{
		1:         "000/000/001",
		123456789: "123/456/789",
		0:         "000/000/000",
	}
	for in, want := range cases {
		if got := formatSequenceNumber(in); got != want {
			t.Errorf("formatSequenceNumber(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestParseOSMTimestamp(t *testing.T) {
	ts, err := parseOSMTimestamp("2024-01-15T10:30:00Z")
	if err != nil {
		t.Fatalf("parseOSMTimestamp: %v", err)
	}
	if ts <= 0 {
		t.Errorf("expected a positive unix timestamp, got %v", ts)
	}
}

func TestParseOSMTimestampMalformed(t *testing.T) {
	if _, err := parseOSMTimestamp("not-a-timestamp"); err == nil {
		t.Error("expected an error for a malformed timestamp")
	}
}

func TestFetchStateParsesSequenceAndTimestamp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("sequenceNumber=42\ntimestamp=2024-01-15T10:30:00Z\n"))
	}))
	defer srv.Close()

	st, err := FetchState(context.Background(), srv.Client(), srv.URL, nil)
	if err != nil {
		t.Fatalf("FetchState: %v", err)
	}
	if st.Number != 42 {
		t.Errorf("expected sequence 42, got %d", st.Number)
	}
	if st.Timestamp <= 0 {
		t.Errorf("expected a positive timestamp, got %v", st.Timestamp)
	}
}

func TestFetchStateMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("garbage"))
	}))
	defer srv.Close()

	if _, err := FetchState(context.Background(), srv.Client(), srv.URL, nil); err == nil {
		t.Error("expected an error for a malformed state document")
	}
}
