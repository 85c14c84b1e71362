package firestore

import (
	"reflect"
	"testing"
	"time"

	domain "github.com/tindahan/api/internal/domain"
)

func TestEncodeHistoryPreservesPriorEntries(t *testing.T) {
	prior := []any{
		map[string]any{"status": "pending", "timestamp": "2024-06-01T08:00:00Z"},
		map[string]any{"migratedFrom": "v1"},
		"corrupt-entry",
	}
	at := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

	encoded := encodeHistory(prior, []domain.StatusHistoryEntry{
		{Status: "completed", Note: "Status updated to completed", Timestamp: at},
	})

	if len(encoded) != 4 {
		t.Fatalf("len(encoded) = %d, want prior entries plus one", len(encoded))
	}
	if !reflect.DeepEqual(encoded[:3], prior) {
		t.Fatalf("prior entries = %#v, want carried verbatim", encoded[:3])
	}

	record, ok := encoded[3].(map[string]any)
	if !ok {
		t.Fatalf("appended entry = %#v", encoded[3])
	}
	if record["status"] != "completed" || record["note"] != "Status updated to completed" {
		t.Fatalf("appended record = %#v", record)
	}
	if ts, ok := record["timestamp"].(time.Time); !ok || !ts.Equal(at) {
		t.Fatalf("appended timestamp = %#v", record["timestamp"])
	}
}

func TestEncodeHistoryOmitsEmptyNote(t *testing.T) {
	encoded := encodeHistory(nil, []domain.StatusHistoryEntry{{Status: "to-pack"}})
	if len(encoded) != 1 {
		t.Fatalf("len(encoded) = %d", len(encoded))
	}
	record := encoded[0].(map[string]any)
	if _, present := record["note"]; present {
		t.Fatalf("record = %#v, want no note key", record)
	}
}
