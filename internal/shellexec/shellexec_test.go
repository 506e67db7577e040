package shellexec

import (
	"context"
	"errors"
	"os/exec"
	"testing"
)

func TestShellRequired(t *testing.T) {
	if !ShellRequired("echo a; echo b") {
		t.Error("expected semicolon to require a shell")
	}
	if !ShellRequired("echo $HOME") {
		t.Error("expected $ to require a shell")
	}
	if ShellRequired("echo plain text") {
		t.Error("expected plain text to not require a shell")
	}
}

func TestQuoteNoEscapeNeeded(t *testing.T) {
	if got := Quote("plaintext"); got != "plaintext" {
		t.Errorf("got %q", got)
	}
}

func TestQuoteEscapesSpecials(t *testing.T) {
	got := Quote("a b")
	if got != `a\ b` {
		t.Errorf("got %q", got)
	}
	got = Quote("$HOME")
	if got != `\$HOME` {
		t.Errorf("got %q", got)
	}
}

func TestSplitArgv(t *testing.T) {
	argv, err := SplitArgv(`echo "hello world" 'a b'`)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"echo", "hello world", "a b"}
	if len(argv) != len(want) {
		t.Fatalf("got %v, want %v", argv, want)
	}
	for i := range want {
		if argv[i] != want[i] {
			t.Errorf("argv[%d] = %q, want %q", i, argv[i], want[i])
		}
	}
}

func fakeLookPath(present map[string]bool) LookPath {
	return func(name string) (string, error) {
		if present[name] {
			return "/usr/bin/" + name, nil
		}
		return "", errors.New("not found")
	}
}

func TestDetectPrefersIonThenDash(t *testing.T) {
	if s := Detect(fakeLookPath(map[string]bool{"ion": true, "dash": true})); s != ShellIon {
		t.Errorf("got %v, want ShellIon", s)
	}
	if s := Detect(fakeLookPath(map[string]bool{"dash": true})); s != ShellDash {
		t.Errorf("got %v, want ShellDash", s)
	}
	if s := Detect(fakeLookPath(map[string]bool{})); s != ShellPOSIX {
		t.Errorf("got %v, want ShellPOSIX", s)
	}
}

func TestBuilderShellEnabled(t *testing.T) {
	var gotName string
	var gotArgs []string
	fake := func(ctx context.Context, name string, args ...string) *exec.Cmd {
		gotName = name
		gotArgs = args
		return exec.CommandContext(ctx, "true")
	}
	b := NewBuilderWithCmd(ShellDash, fake)
	_, err := b.Build(context.Background(), "echo hi", true)
	if err != nil {
		t.Fatal(err)
	}
	if gotName != "dash" || len(gotArgs) != 2 || gotArgs[0] != "-c" || gotArgs[1] != "echo hi" {
		t.Errorf("got name=%q args=%v", gotName, gotArgs)
	}
}

func TestBuilderDirectArgv(t *testing.T) {
	var gotName string
	var gotArgs []string
	fake := func(ctx context.Context, name string, args ...string) *exec.Cmd {
		gotName = name
		gotArgs = args
		return exec.CommandContext(ctx, "true")
	}
	b := NewBuilderWithCmd(ShellDash, fake)
	_, err := b.Build(context.Background(), "echo hi there", false)
	if err != nil {
		t.Fatal(err)
	}
	if gotName != "echo" || len(gotArgs) != 2 || gotArgs[0] != "hi" || gotArgs[1] != "there" {
		t.Errorf("got name=%q args=%v", gotName, gotArgs)
	}
}
