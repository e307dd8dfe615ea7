package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func resetDumpFlags() {
	dumpIR1 = false
	dumpIR2 = false
}

func TestNormalizeFlags(t *testing.T) {
	cases := []struct {
		in   []string
		want []string
	}{
		{[]string{"-dump-ir1", "f.c"}, []string{"--dump-ir1", "f.c"}},
		{[]string{"-dump-ir2", "f.c"}, []string{"--dump-ir2", "f.c"}},
		{[]string{"--dump-ir1", "f.c"}, []string{"--dump-ir1", "f.c"}},
		{[]string{"f.c"}, []string{"f.c"}},
	}
	for _, c := range cases {
		got := normalizeFlags(c.in)
		if strings.Join(got, " ") != strings.Join(c.want, " ") {
			t.Errorf("normalizeFlags(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestUsageOnBadArgs(t *testing.T) {
	resetDumpFlags()
	var out, errOut bytes.Buffer
	code := run(nil, &out, &errOut)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.HasPrefix(out.String(), "Usage:") {
		t.Errorf("stdout = %q, want Usage: prefix", out.String())
	}
}

func TestUsageOnTooManyArgs(t *testing.T) {
	resetDumpFlags()
	var out, errOut bytes.Buffer
	code := run([]string{"a.c", "b.c"}, &out, &errOut)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.HasPrefix(out.String(), "Usage:") {
		t.Errorf("stdout = %q, want Usage: prefix", out.String())
	}
}

func TestCompileSimpleReturn(t *testing.T) {
	resetDumpFlags()
	dir := t.TempDir()
	src := filepath.Join(dir, "t.c")
	if err := os.WriteFile(src, []byte("int main(){ return 0; }"), 0o644); err != nil {
		t.Fatal(err)
	}
	var out, errOut bytes.Buffer
	code := run([]string{src}, &out, &errOut)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, errOut.String())
	}
	if !strings.Contains(out.String(), "main:") {
		t.Errorf("expected a main: label in output, got:\n%s", out.String())
	}
}

func TestCompileFatalErrorExitsNonZero(t *testing.T) {
	resetDumpFlags()
	dir := t.TempDir()
	src := filepath.Join(dir, "t.c")
	if err := os.WriteFile(src, []byte("int main(){ return }"), 0o644); err != nil {
		t.Fatal(err)
	}
	var out, errOut bytes.Buffer
	code := run([]string{src}, &out, &errOut)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1 on parse error", code)
	}
	if !strings.HasPrefix(errOut.String(), "mir9cc: ") {
		t.Errorf("stderr = %q, want mir9cc: prefix", errOut.String())
	}
}

func TestDumpIR1Header(t *testing.T) {
	resetDumpFlags()
	dir := t.TempDir()
	src := filepath.Join(dir, "t.c")
	if err := os.WriteFile(src, []byte("int main(){ return 1+2; }"), 0o644); err != nil {
		t.Fatal(err)
	}
	var out, errOut bytes.Buffer
	code := run([]string{"--dump-ir1", src}, &out, &errOut)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, errOut.String())
	}
	if !strings.Contains(out.String(), "-dump-ir1:") {
		t.Errorf("expected -dump-ir1: header, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "main():") {
		t.Errorf("expected main(): block in dump, got:\n%s", out.String())
	}
}

func TestDumpBothHeaders(t *testing.T) {
	resetDumpFlags()
	dir := t.TempDir()
	src := filepath.Join(dir, "t.c")
	if err := os.WriteFile(src, []byte("int main(){ return 1+2; }"), 0o644); err != nil {
		t.Fatal(err)
	}
	var out, errOut bytes.Buffer
	code := run([]string{"--dump-ir1", "--dump-ir2", src}, &out, &errOut)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, errOut.String())
	}
	s := out.String()
	i1 := strings.Index(s, "-dump-ir1:")
	i2 := strings.Index(s, "-dump-ir2:")
	if i1 == -1 || i2 == -1 || i2 < i1 {
		t.Errorf("expected -dump-ir1: before -dump-ir2:, got:\n%s", s)
	}
}
