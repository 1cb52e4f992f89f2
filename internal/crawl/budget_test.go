package crawl

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGovernorCeiling(t *testing.T) {
	gov := NewGovernor(3, 0, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !gov.Allow() {
			t.Fatalf("Allow() false after %d of 3 spends", i)
		}
		if err := gov.Spend(ctx); err != nil {
			t.Fatalf("spend %d: %v", i, err)
		}
	}

	if gov.Allow() {
		t.Error("Allow() true at the ceiling")
	}
	if err := gov.Spend(ctx); !errors.Is(err, ErrBudgetExhausted) {
		t.Errorf("spend past ceiling: got %v, want ErrBudgetExhausted", err)
	}
	if gov.Used() != 3 {
		t.Errorf("Used() = %d, want 3; refused spends must not count", gov.Used())
	}
	if got := gov.StopReason(); got != "request_budget" {
		t.Errorf("StopReason() = %q, want request_budget", got)
	}
}

func TestGovernorUnlimitedRequests(t *testing.T) {
	gov := NewGovernor(0, 0, 0)
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		if err := gov.Spend(ctx); err != nil {
			t.Fatalf("spend %d: %v", i, err)
		}
	}
	if !gov.Allow() {
		t.Error("Allow() false with no request ceiling")
	}
	if gov.StopReason() != "" {
		t.Errorf("StopReason() = %q, want empty", gov.StopReason())
	}
}

func TestGovernorTimeCeiling(t *testing.T) {
	gov := NewGovernor(0, time.Millisecond, 0)
	time.Sleep(5 * time.Millisecond)
	if gov.Allow() {
		t.Error("Allow() true past the time ceiling")
	}
	if got := gov.StopReason(); got != "time_budget" {
		t.Errorf("StopReason() = %q, want time_budget", got)
	}
}

func TestGovernorPacing(t *testing.T) {
	gov := NewGovernor(0, 0, 1000)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := gov.Spend(ctx); err != nil {
			t.Fatalf("paced spend %d: %v", i, err)
		}
	}
	if gov.Used() != 5 {
		t.Errorf("Used() = %d, want 5", gov.Used())
	}
}

func TestGovernorSpendCanceledContext(t *testing.T) {
	gov := NewGovernor(0, 0, 0.001) // slow enough that the wait must block
	if err := gov.Spend(context.Background()); err != nil {
		t.Fatalf("first spend: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := gov.Spend(ctx); err == nil {
		t.Error("spend with canceled context succeeded")
	}
	if gov.Used() != 1 {
		t.Errorf("Used() = %d, want 1", gov.Used())
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"search", "relationships", "mixed"} {
		m, err := ParseMode(s)
		if err != nil {
			t.Errorf("ParseMode(%q): %v", s, err)
		}
		if string(m) != s {
			t.Errorf("ParseMode(%q) = %q", s, m)
		}
	}
	if _, err := ParseMode("breadth-first"); err == nil {
		t.Error("ParseMode accepted an unknown mode")
	}
}
