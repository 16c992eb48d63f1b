package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tailorjob/backend/internal/services"
)

type fakeSubs struct{ granted map[string]string }

func (f *fakeSubs) GrantTier(_ context.Context, userID, tier string) error {
	if tier == "platinum" {
		return errors.New("Invalid tier")
	}
	f.granted[userID] = tier
	return nil
}

type fakeCVs struct{ olderThan time.Time }

func (f *fakeCVs) RequeueStuck(_ context.Context, olderThan time.Time, limit int) (int, error) {
	f.olderThan = olderThan
	return min(limit, 3), nil
}

type fakeMatches struct{ user string }

func (f *fakeMatches) DeleteForUser(_ context.Context, userID string) (int64, error) {
	f.user = userID
	return 2, nil
}

func (f *fakeMatches) DeleteAll(context.Context) (int64, error) { return 9, nil }

type fakeMonitor struct{ report *services.HealthReport }

func (f fakeMonitor) RunChecks(context.Context) *services.HealthReport { return f.report }

func newTestAdmin() (*Admin, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &Admin{
		Subs:    &fakeSubs{granted: map[string]string{}},
		CVs:     &fakeCVs{},
		Matches: &fakeMatches{},
		Monitor: fakeMonitor{report: &services.HealthReport{}},
		Out:     out,
		now:     func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
	}, out
}

// run executes the root command against a fake admin.
func run(t *testing.T, a *Admin, args ...string) error {
	t.Helper()
	prev := newAdmin
	newAdmin = func(context.Context, *logrus.Logger) (*Admin, error) { return a, nil }
	t.Cleanup(func() { newAdmin = prev })

	rootCmd.SetArgs(args)
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	return rootCmd.Execute()
}

func TestGrantTierCommand(t *testing.T) {
	a, out := newTestAdmin()
	if err := run(t, a, "grant-tier", "--user", "u-1", "--tier", "pro", "--yes"); err != nil {
		t.Fatalf("grant-tier: %v", err)
	}
	if a.Subs.(*fakeSubs).granted["u-1"] != "pro" {
		t.Fatal("tier not granted")
	}
	if !strings.Contains(out.String(), "granted tier pro to user u-1") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestGrantTierValidation(t *testing.T) {
	a, _ := newTestAdmin()
	if err := a.GrantTier(context.Background(), "", "pro"); err == nil {
		t.Fatal("expected missing user error")
	}
	if err := a.GrantTier(context.Background(), "u-1", "platinum"); err == nil {
		t.Fatal("expected invalid tier error")
	}
}

func TestConfirmationDeclined(t *testing.T) {
	prev := confirm
	confirm = func(string) error { return errAborted }
	t.Cleanup(func() { confirm = prev })

	a, _ := newTestAdmin()
	err := run(t, a, "clear-match-cache", "--user", "u-1", "--yes=false")
	if !errors.Is(err, errAborted) {
		t.Fatalf("expected abort, got %v", err)
	}
	if a.Matches.(*fakeMatches).user != "" {
		t.Fatal("nothing should be deleted after declining")
	}
}

func TestClearMatches(t *testing.T) {
	a, out := newTestAdmin()
	if err := a.ClearMatches(context.Background(), "u-7"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if a.Matches.(*fakeMatches).user != "u-7" || !strings.Contains(out.String(), "deleted 2 match analyses") {
		t.Fatalf("unexpected per-user clear: %q", out.String())
	}

	out.Reset()
	if err := a.ClearMatches(context.Background(), ""); err != nil {
		t.Fatalf("clear all: %v", err)
	}
	if !strings.Contains(out.String(), "deleted 9 match analyses") {
		t.Fatalf("unexpected clear-all output: %q", out.String())
	}
}

func TestRequeueFailedCVs(t *testing.T) {
	a, out := newTestAdmin()
	if err := a.RequeueFailedCVs(context.Background(), time.Hour, 10); err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if want := time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC); !a.CVs.(*fakeCVs).olderThan.Equal(want) {
		t.Fatalf("cutoff = %v, want %v", a.CVs.(*fakeCVs).olderThan, want)
	}
	if !strings.Contains(out.String(), "requeued 3 cvs") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestCheckSubscriptions(t *testing.T) {
	a, out := newTestAdmin()
	if err := a.CheckSubscriptions(context.Background()); err != nil {
		t.Fatalf("healthy report should pass: %v", err)
	}
	if !strings.Contains(out.String(), `"payments"`) {
		t.Fatalf("report not printed: %q", out.String())
	}

	low := 0.4
	a.Monitor = fakeMonitor{report: &services.HealthReport{Payments: services.PaymentHealth{SuccessRate: &low}}}
	out.Reset()
	if err := a.CheckSubscriptions(context.Background()); !errors.Is(err, errUnhealthy) {
		t.Fatalf("expected unhealthy, got %v", err)
	}
	if !strings.Contains(out.String(), "problem: payment success rate 40.0% is below 90%") {
		t.Fatalf("problem not printed: %q", out.String())
	}
}
