package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func withTTY(t *testing.T, tty bool) {
	t.Helper()
	prev := stdinIsTTY
	stdinIsTTY = func() bool { return tty }
	t.Cleanup(func() { stdinIsTTY = prev })
}

func TestResolveBuildOut(t *testing.T) {
	t.Run("explicit output wins", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "nested", "model.mcf")
		got, derived, err := resolveBuildOut("/data/news.arpa", out)
		if err != nil {
			t.Fatalf("resolveBuildOut: %v", err)
		}
		if derived || got != out {
			t.Fatalf("got %q derived=%v, want %q", got, derived, out)
		}
		if _, err := os.Stat(filepath.Dir(got)); err != nil {
			t.Fatalf("output directory not created: %v", err)
		}
	})

	t.Run("derived from arpa name", func(t *testing.T) {
		envDir := filepath.Join(t.TempDir(), "build-out")
		t.Setenv(envBuildOutDir, envDir)

		for in, want := range map[string]string{
			"news.arpa":     "news.mcf",
			"Bigram.LM":     "Bigram.mcf",
			"corpus.txt":    "corpus.txt.mcf",
			"5gram.arpa.gz": "5gram.arpa.gz.mcf",
		} {
			got, derived, err := resolveBuildOut(filepath.Join("/data", in), "")
			if err != nil {
				t.Fatalf("%s: %v", in, err)
			}
			if !derived || got != filepath.Join(envDir, want) {
				t.Fatalf("%s: got %q derived=%v", in, got, derived)
			}
		}
	})

	t.Run("default output dir is ./out", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv(envBuildOutDir, "")

		got, _, err := resolveBuildOut("wiki.arpa", "")
		if err != nil {
			t.Fatalf("resolveBuildOut: %v", err)
		}
		if want := filepath.Join("out", "wiki.mcf"); got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
		if _, err := os.Stat("out"); err != nil {
			t.Fatalf("out directory not created: %v", err)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if _, _, err := resolveBuildOut("", ""); err == nil {
			t.Fatal("expected error for empty arpa path")
		}
	})
}

func TestDiscoverMCFModels(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, dir, "b.mcf", "a.MCF", "notes.txt", ".hidden.mcf")
	if err := os.Mkdir(filepath.Join(dir, "sub.mcf"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := discoverMCFModels(dir)
	if err != nil {
		t.Fatalf("discoverMCFModels: %v", err)
	}
	want := []string{filepath.Join(dir, "a.MCF"), filepath.Join(dir, "b.mcf")}
	if !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	if _, err := discoverMCFModels(filepath.Join(dir, "missing")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestResolveModelPath(t *testing.T) {
	t.Run("model flag bypasses directory", func(t *testing.T) {
		t.Setenv(envModelsDir, "")
		got, err := resolveModelPath(" /tmp/./model.mcf ", "", nil, io.Discard)
		if err != nil {
			t.Fatalf("resolveModelPath: %v", err)
		}
		if got != filepath.Clean("/tmp/model.mcf") {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("nothing configured", func(t *testing.T) {
		t.Setenv(envModelsDir, "")
		if _, err := resolveModelPath("", "", nil, io.Discard); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("single model selects automatically", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "only.mcf")
		t.Setenv(envModelsDir, dir)
		withTTY(t, false)

		got, err := resolveModelPath("", "", nil, io.Discard)
		if err != nil {
			t.Fatalf("resolveModelPath: %v", err)
		}
		if got != filepath.Join(dir, "only.mcf") {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("flag directory beats env", func(t *testing.T) {
		envDir, flagDir := t.TempDir(), t.TempDir()
		touch(t, envDir, "env.mcf")
		touch(t, flagDir, "flag.mcf")
		t.Setenv(envModelsDir, envDir)

		got, err := resolveModelPath("", flagDir, nil, io.Discard)
		if err != nil {
			t.Fatalf("resolveModelPath: %v", err)
		}
		if got != filepath.Join(flagDir, "flag.mcf") {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("several models need a terminal", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "a.mcf", "b.mcf")
		t.Setenv(envModelsDir, dir)
		withTTY(t, false)

		if _, err := resolveModelPath("", "", nil, io.Discard); err == nil {
			t.Fatal("expected error without a terminal")
		}
	})

	t.Run("interactive pick", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "b.mcf", "a.mcf")
		t.Setenv(envModelsDir, dir)
		withTTY(t, true)

		var prompt bytes.Buffer
		got, err := resolveModelPath("", "", strings.NewReader("\n7\nx\n2\n"), &prompt)
		if err != nil {
			t.Fatalf("resolveModelPath: %v", err)
		}
		if got != filepath.Join(dir, "b.mcf") {
			t.Fatalf("got %q", got)
		}
		if strings.Count(prompt.String(), "is not between") != 2 {
			t.Fatalf("expected two rejected answers:\n%s", prompt.String())
		}
	})

	t.Run("interactive pick hits eof", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "a.mcf", "b.mcf")
		t.Setenv(envModelsDir, dir)
		withTTY(t, true)

		_, err := resolveModelPath("", "", strings.NewReader("9"), io.Discard)
		if !errors.Is(err, errNoSelection) {
			t.Fatalf("got %v, want errNoSelection", err)
		}
	})
}

func TestParseSelection(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in  string
		idx int
		ok  bool
	}{
		{"1", 0, true},
		{"3", 2, true},
		{"0", 0, false},
		{"4", 0, false},
		{"-1", 0, false},
		{"two", 0, false},
	}
	for _, c := range cases {
		idx, ok := parseSelection(c.in, 3)
		if idx != c.idx || ok != c.ok {
			t.Fatalf("parseSelection(%q) = %d, %v; want %d, %v", c.in, idx, ok, c.idx, c.ok)
		}
	}
}
