package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const helloSource = `
.class public LHello;
.super Ljava/lang/Object;

.field public static count:I

.method static <clinit>()V
    .registers 1
    const/4 v0, 5
    sput v0, LHello;->count:I
    return-void
.end method

.method public static main()V
    .registers 1
    const-string v0, "hello"
    invoke-static {v0}, Lgodex/io/Console;->println(Ljava/lang/String;)V
    return-void
.end method

.method public static status()I
    .registers 1
    sget v0, LHello;->count:I
    return v0
.end method

.method public static crash()V
    .registers 2
    const/4 v0, 1
    const/4 v1, 0
    div-int v0, v0, v1
    return-void
.end method
`

func writeSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hello.dasm")
	if err := os.WriteFile(path, []byte(helloSource), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func godex(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun(t *testing.T) {
	src := writeSource(t)
	tests := []struct {
		name     string
		args     []string
		code     int
		stdout   string
		stderr   string
		contains bool
	}{
		{name: "main", args: []string{"run", "-main", "Hello", src}, stdout: "hello\n"},
		{name: "table engine", args: []string{"run", "-engine", "table", "-main", "Hello", src}, stdout: "hello\n"},
		{name: "preinit", args: []string{"run", "-preinit", "-main", "Hello", src}, stdout: "hello\n"},
		{name: "exit status", args: []string{"run", "-main", "Hello", "-method", "status", src}, code: 5},
		{name: "uncaught", args: []string{"run", "-main", "Hello", "-method", "crash", src}, code: 1,
			stderr: "uncaught exception java.lang.ArithmeticException: divide by zero", contains: true},
		{name: "no entry", args: []string{"run", "-main", "Hello", "-method", "missing", src}, code: 1,
			stderr: "has no static missing()V", contains: true},
		{name: "no class", args: []string{"run", "-main", "Nope", src}, code: 1,
			stderr: "java.lang.NoClassDefFoundError: Nope", contains: true},
		{name: "bad engine", args: []string{"run", "-engine", "jit", "-main", "Hello", src}, code: 1,
			stderr: `unknown interpreter engine "jit"`, contains: true},
		{name: "missing main", args: []string{"run", src}, code: 1, stderr: "-main is required", contains: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := godex(t, tt.args...)
			if code != tt.code {
				t.Errorf("exit code: got %d, want %d (stderr %q)", code, tt.code, stderr)
			}
			if tt.stdout != "" && stdout != tt.stdout {
				t.Errorf("stdout: got %q, want %q", stdout, tt.stdout)
			}
			if tt.stderr != "" && !strings.Contains(stderr, tt.stderr) {
				t.Errorf("stderr: got %q, want it to contain %q", stderr, tt.stderr)
			}
		})
	}
}

func TestAsmThenRun(t *testing.T) {
	src := writeSource(t)
	for _, compress := range []bool{false, true} {
		args := []string{"asm", src}
		want := strings.TrimSuffix(src, ".dasm") + ".gdx"
		if compress {
			args = []string{"asm", "-z", src}
			want += "z"
		}
		code, stdout, stderr := godex(t, args...)
		if code != 0 {
			t.Fatalf("asm: exit %d: %s", code, stderr)
		}
		if !strings.HasPrefix(stdout, "wrote "+want+": 1 classes") {
			t.Errorf("asm: got %q", stdout)
		}
		code, stdout, stderr = godex(t, "run", "-stats", "-main", "Hello", want)
		if code != 0 {
			t.Fatalf("run %s: exit %d: %s", want, code, stderr)
		}
		if !strings.HasPrefix(stdout, "hello\n-- ") || !strings.Contains(stdout, "objects") {
			t.Errorf("run %s: got %q", want, stdout)
		}
	}

	code, _, stderr := godex(t, "asm", "-z", "-o", filepath.Join(t.TempDir(), "out.gdx"), src)
	if code != 1 || !strings.Contains(stderr, "must end in .gdxz") {
		t.Errorf("got exit %d, stderr %q", code, stderr)
	}
}

func TestRunDirectory(t *testing.T) {
	src := writeSource(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "hello.gdx")
	if code, _, stderr := godex(t, "asm", "-o", out, src); code != 0 {
		t.Fatalf("asm: %s", stderr)
	}
	code, stdout, stderr := godex(t, "run", "-main", "Hello", dir)
	if code != 0 || stdout != "hello\n" {
		t.Errorf("got exit %d, stdout %q, stderr %q", code, stdout, stderr)
	}
}

func TestDump(t *testing.T) {
	code, stdout, stderr := godex(t, "dump", writeSource(t))
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	for _, want := range []string{
		".class public LHello;",
		".method public static main()V",
		".registers 1  # ins 0, outs 1",
		`const-string v0, string@0  # "hello"`,
		"# LHello;->count:I",
		"# Lgodex/io/Console;->println(Ljava/lang/String;)V",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("dump lacks %q:\n%s", want, stdout)
		}
	}
}

func TestUsage(t *testing.T) {
	if code, _, stderr := godex(t); code != 2 || !strings.Contains(stderr, "Usage: godex") {
		t.Errorf("no args: got exit %d, stderr %q", code, stderr)
	}
	if code, _, stderr := godex(t, "frob"); code != 2 || !strings.Contains(stderr, `unknown command "frob"`) {
		t.Errorf("unknown command: got exit %d, stderr %q", code, stderr)
	}
	if code, stdout, _ := godex(t, "help"); code != 0 || !strings.Contains(stdout, "Commands:") {
		t.Errorf("help: got exit %d, stdout %q", code, stdout)
	}
}
