package statustool

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

// fakeService satisfies tools.Service for handler tests.
type fakeService struct {
	uptime    time.Duration
	buildTime int
	runtime   int
}

func (f *fakeService) Uptime() time.Duration  { return f.uptime }
func (f *fakeService) CountTools() (int, int) { return f.buildTime, f.runtime }

func TestStatus_ReportsCountsAndUptime(t *testing.T) {
	ts := Tools[*fakeService]()
	if len(ts) != 1 || ts[0].Name != "status" {
		t.Fatalf("Tools() = %+v, want single status tool", ts)
	}

	svc := &fakeService{uptime: 90 * time.Second, buildTime: 3, runtime: 2}
	res, err := ts[0].Handler.Invoke(context.Background(), svc, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	var report struct {
		UptimeSeconds  int64 `json:"uptime_seconds"`
		BuildTimeTools int   `json:"build_time_tools"`
		RuntimeTools   int   `json:"runtime_tools"`
	}
	if err := json.Unmarshal([]byte(res.Content), &report); err != nil {
		t.Fatalf("unmarshal content %q: %v", res.Content, err)
	}
	if report.UptimeSeconds != 90 {
		t.Errorf("UptimeSeconds = %d, want 90", report.UptimeSeconds)
	}
	if report.BuildTimeTools != 3 || report.RuntimeTools != 2 {
		t.Errorf("counts = (%d, %d), want (3, 2)", report.BuildTimeTools, report.RuntimeTools)
	}
	if res.Structured["runtime_tools"] != 2 {
		t.Errorf("Structured[runtime_tools] = %v, want 2", res.Structured["runtime_tools"])
	}
}
