package main

import (
	"bufio"
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

const (
	envBuildOutDir = "NGRAMLM_BUILD_OUT_DIR"
	envModelsDir   = "NGRAMLM_MODELS_DIR"

	modelExt = ".mcf"
)

// arpaExts are stripped from the input name when naming a built model.
var arpaExts = []string{".arpa", ".lm"}

// stdinIsTTY is a seam for tests.
var stdinIsTTY = isTTY

var errNoSelection = errors.New("no model selected on stdin; set --model")

// resolveBuildOut picks the output path for a build. Without --out the model
// is named after the ARPA file and placed in $NGRAMLM_BUILD_OUT_DIR or ./out.
// The bool reports whether the path was derived rather than given.
func resolveBuildOut(arpaPath, outFlag string) (string, bool, error) {
	if out := strings.TrimSpace(outFlag); out != "" {
		out = filepath.Clean(out)
		return out, false, os.MkdirAll(filepath.Dir(out), 0o755)
	}

	name := filepath.Base(filepath.Clean(arpaPath))
	if name == "." || name == string(filepath.Separator) {
		return "", true, fmt.Errorf("invalid arpa path: %q", arpaPath)
	}
	ext := filepath.Ext(name)
	if slices.ContainsFunc(arpaExts, func(e string) bool { return strings.EqualFold(e, ext) }) {
		name = strings.TrimSuffix(name, ext)
	}

	dir := cmp.Or(strings.TrimSpace(os.Getenv(envBuildOutDir)), filepath.Join(".", "out"))
	out := filepath.Join(dir, name+modelExt)
	return out, true, os.MkdirAll(dir, 0o755)
}

// modelsDirFor returns the models directory from the flag or the environment.
func modelsDirFor(flag string) string {
	return cmp.Or(strings.TrimSpace(flag), strings.TrimSpace(os.Getenv(envModelsDir)))
}

// resolveModelPath turns --model / --models-path into one model file. A
// directory holding several models needs an interactive pick.
func resolveModelPath(modelFlag, modelsPath string, stdin io.Reader, stderr io.Writer) (string, error) {
	if m := strings.TrimSpace(modelFlag); m != "" {
		return filepath.Clean(m), nil
	}

	dir := modelsDirFor(modelsPath)
	if dir == "" {
		return "", fmt.Errorf("--model or --models-path is required unless %s is set", envModelsDir)
	}
	models, err := discoverMCFModels(dir)
	if err != nil {
		return "", err
	}

	switch {
	case len(models) == 0:
		return "", fmt.Errorf("no %s models found in %s", modelExt, dir)
	case len(models) == 1:
		_, _ = fmt.Fprintf(stderr, "ngramlm: using model %s\n", models[0])
		return models[0], nil
	case !stdinIsTTY():
		return "", fmt.Errorf("%d models found in %s and stdin is not interactive; set --model", len(models), dir)
	}
	return selectModelInteractively(dir, models, stdin, stderr)
}

// discoverMCFModels lists model files directly inside dir, sorted by path.
func discoverMCFModels(dir string) ([]string, error) {
	if dir == "" {
		return nil, errors.New("models directory is empty")
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read models directory: %w", err)
	}

	var models []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), modelExt) {
			continue
		}
		models = append(models, filepath.Join(dir, name))
	}
	slices.Sort(models)
	return models, nil
}

func selectModelInteractively(dir string, models []string, stdin io.Reader, stderr io.Writer) (string, error) {
	_, _ = fmt.Fprintf(stderr, "ngramlm: models in %s\n", dir)
	for i, m := range models {
		_, _ = fmt.Fprintf(stderr, "%3d  %s\n", i+1, modelDisplayName(dir, m))
	}

	sc := bufio.NewScanner(stdin)
	for {
		_, _ = fmt.Fprintf(stderr, "ngramlm: model [1-%d]: ", len(models))
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", errNoSelection
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if i, ok := parseSelection(line, len(models)); ok {
			return models[i], nil
		}
		_, _ = fmt.Fprintf(stderr, "ngramlm: %q is not between 1 and %d\n", line, len(models))
	}
}

// parseSelection maps a 1-based menu choice onto an index.
func parseSelection(line string, n int) (int, bool) {
	v, err := strconv.Atoi(line)
	if err != nil || v < 1 || v > n {
		return 0, false
	}
	return v - 1, true
}

func modelDisplayName(dir, path string) string {
	if rel, err := filepath.Rel(dir, path); err == nil && rel != "." {
		return rel
	}
	return filepath.Base(path)
}

func isTTY() bool {
	st, err := os.Stdin.Stat()
	return err == nil && st.Mode()&os.ModeCharDevice != 0
}
