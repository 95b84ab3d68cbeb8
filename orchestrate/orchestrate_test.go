package orchestrate

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestRun_CapturesCombinedOutput(t *testing.T) {
	cfg := Config{
		UseLocalTarget: true,
		TimeoutSeconds: 30,
		Command:        []string{"sh", "-c", "echo out-line; echo err-line >&2"},
	}
	captured, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(captured.Output, "out-line") || !strings.Contains(captured.Output, "err-line") {
		t.Errorf("output missing streams: %q", captured.Output)
	}
	if captured.Duration <= 0 {
		t.Errorf("duration = %v", captured.Duration)
	}
}

func TestRun_Timeout(t *testing.T) {
	cfg := Config{
		UseLocalTarget: true,
		TimeoutSeconds: 1,
		Command:        []string{"sh", "-c", "echo partial; sleep 30"},
	}
	start := time.Now()
	captured, err := Run(context.Background(), cfg)
	if KindOf(err) != TimedOut {
		t.Fatalf("kind = %q, err = %v, want TimedOut", KindOf(err), err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("timeout did not tear the child down promptly: %v", elapsed)
	}
	// Output produced before the deadline is still captured.
	if !strings.Contains(captured.Output, "partial") {
		t.Errorf("partial output lost: %q", captured.Output)
	}
}

func TestRun_Crash(t *testing.T) {
	cfg := Config{
		UseLocalTarget: true,
		TimeoutSeconds: 30,
		Command:        []string{"sh", "-c", "echo before-crash; exit 3"},
	}
	captured, err := Run(context.Background(), cfg)
	if KindOf(err) != ProcessCrashed {
		t.Fatalf("kind = %q, err = %v, want ProcessCrashed", KindOf(err), err)
	}
	var e *Error
	if !errors.As(err, &e) || e.ExitCode != 3 {
		t.Errorf("exit code not reported: %v", err)
	}
	if !strings.Contains(captured.Output, "before-crash") {
		t.Errorf("output before crash lost: %q", captured.Output)
	}
}

func TestRun_StartFailure(t *testing.T) {
	cfg := Config{
		UseLocalTarget: true,
		TimeoutSeconds: 5,
		Command:        []string{"/definitely/not/a/binary"},
	}
	_, err := Run(context.Background(), cfg)
	if KindOf(err) != BuildFailed {
		t.Errorf("kind = %q, want BuildFailed", KindOf(err))
	}

	_, err = Run(context.Background(), Config{})
	if KindOf(err) != BuildFailed {
		t.Errorf("empty command kind = %q, want BuildFailed", KindOf(err))
	}
}

func TestRun_RemotePeerEnv(t *testing.T) {
	addr := "/ip4/10.0.0.9/tcp/4001/p2p/12D3KooWExample"
	cfg := Config{
		UseLocalTarget: false,
		TargetAddress:  addr,
		TimeoutSeconds: 10,
		Command:        []string{"sh", "-c", "echo REMOTE_PEER=$REMOTE_PEER"},
	}
	captured, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(captured.Output, "REMOTE_PEER="+addr) {
		t.Errorf("REMOTE_PEER not exported: %q", captured.Output)
	}

	// Local-target runs never leak a remote address to the child.
	cfg.UseLocalTarget = true
	captured, err = Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.Contains(captured.Output, addr) {
		t.Errorf("REMOTE_PEER exported for local run: %q", captured.Output)
	}
}

func TestConfig_TimeoutDefault(t *testing.T) {
	if got := (Config{}).Timeout(); got != 120*time.Second {
		t.Errorf("default timeout = %v, want 120s", got)
	}
	if got := (Config{TimeoutSeconds: 7}).Timeout(); got != 7*time.Second {
		t.Errorf("timeout = %v, want 7s", got)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("CONNCHECK_USE_LOCAL_TARGET", "false")
	t.Setenv("CONNCHECK_TARGET_ADDRESS", "/ip4/1.2.3.4/tcp/4001")
	t.Setenv("CONNCHECK_TIMEOUT_SECONDS", "45")
	t.Setenv("CONNCHECK_COMMAND", "cargo run --release")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.UseLocalTarget {
		t.Error("UseLocalTarget = true, want false")
	}
	if cfg.TargetAddress != "/ip4/1.2.3.4/tcp/4001" {
		t.Errorf("TargetAddress = %q", cfg.TargetAddress)
	}
	if cfg.TimeoutSeconds != 45 {
		t.Errorf("TimeoutSeconds = %d", cfg.TimeoutSeconds)
	}
	if len(cfg.Command) != 3 || cfg.Command[0] != "cargo" {
		t.Errorf("Command = %v", cfg.Command)
	}
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"cargo run --release", []string{"cargo", "run", "--release"}},
		{`sh -c 'echo hello world'`, []string{"sh", "-c", "echo hello world"}},
		{`node --title "my app" index.js`, []string{"node", "--title", "my app", "index.js"}},
		{`  spaced   out  `, []string{"spaced", "out"}},
		{`''`, []string{""}},
	}
	for _, tt := range tests {
		got, err := splitCommand(tt.in)
		if err != nil {
			t.Errorf("splitCommand(%q): %v", tt.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitCommand(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := splitCommand(`sh -c 'unterminated`); err == nil {
		t.Error("expected error for unterminated quote")
	}
}

func TestConfigFromEnv_QuotedCommand(t *testing.T) {
	t.Setenv("CONNCHECK_COMMAND", `sh -c 'echo hello world'`)
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	want := []string{"sh", "-c", "echo hello world"}
	if !reflect.DeepEqual(cfg.Command, want) {
		t.Errorf("Command = %v, want %v", cfg.Command, want)
	}

	t.Setenv("CONNCHECK_COMMAND", `sh -c "dangling`)
	if _, err := ConfigFromEnv(); err == nil {
		t.Error("expected error for unterminated quote in CONNCHECK_COMMAND")
	}
}

func TestConfigFromEnv_Malformed(t *testing.T) {
	t.Setenv("CONNCHECK_USE_LOCAL_TARGET", "maybe")
	if _, err := ConfigFromEnv(); err == nil {
		t.Error("expected error for malformed CONNCHECK_USE_LOCAL_TARGET")
	}

	t.Setenv("CONNCHECK_USE_LOCAL_TARGET", "true")
	t.Setenv("CONNCHECK_TIMEOUT_SECONDS", "-5")
	if _, err := ConfigFromEnv(); err == nil {
		t.Error("expected error for negative CONNCHECK_TIMEOUT_SECONDS")
	}
}
