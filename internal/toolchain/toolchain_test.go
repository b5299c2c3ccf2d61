package toolchain

import (
	"context"
	"testing"
)

func TestResultCombined(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		want string
	}{
		{"both streams", Result{Stdout: "out", Stderr: "err"}, "out\nerr"},
		{"stdout only", Result{Stdout: "out"}, "out"},
		{"stderr only", Result{Stderr: "err"}, "err"},
		{"empty", Result{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.Combined(); got != tt.want {
				t.Errorf("Combined() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResultStates(t *testing.T) {
	clean := Result{ExitCode: 0}
	if !clean.Ran() || !clean.OK() {
		t.Error("clean result should be Ran and OK")
	}

	failed := Result{ExitCode: 2}
	if !failed.Ran() {
		t.Error("non-zero exit still means the process ran")
	}
	if failed.OK() {
		t.Error("non-zero exit must not be OK")
	}

	spawn := Result{SpawnErr: context.DeadlineExceeded}
	if spawn.Ran() || spawn.OK() {
		t.Error("spawn failure must be neither Ran nor OK")
	}
}

func TestCLISpawnFailure(t *testing.T) {
	cli := New("definitely-not-an-installed-binary-2847")
	res := cli.Run(context.Background(), "version")
	if res.SpawnErr == nil {
		t.Fatal("expected SpawnErr for a missing binary")
	}
	if res.Ran() {
		t.Error("Ran() must be false on spawn failure")
	}
	if res.Stdout != "" || res.Stderr != "" {
		t.Errorf("expected empty output on spawn failure, got stdout=%q stderr=%q", res.Stdout, res.Stderr)
	}
}

func TestNewDefaultsBin(t *testing.T) {
	if got := New("").Bin; got != DefaultBin {
		t.Errorf("New(\"\").Bin = %q, want %q", got, DefaultBin)
	}
}
