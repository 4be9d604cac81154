// Package testutil holds helpers for tests that talk to live services.
package testutil

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

var loadOnce sync.Once

// LoadDotEnv loads the nearest ".env" file, searching from the working
// directory upwards. Variables already present in the environment win.
func LoadDotEnv() {
	loadOnce.Do(func() {
		path, ok := findUpwards(".env")
		if !ok {
			return
		}
		f, err := os.Open(path)
		if err != nil {
			return
		}
		defer f.Close()

		vars, err := ParseEnv(f)
		if err != nil {
			return
		}
		for k, v := range vars {
			if _, set := os.LookupEnv(k); !set {
				_ = os.Setenv(k, v)
			}
		}
	})
}

// RequireEnv skips t unless every key is set (after loading .env) and returns their values.
func RequireEnv(t testing.TB, keys ...string) map[string]string {
	t.Helper()
	LoadDotEnv()

	vals := make(map[string]string, len(keys))
	for _, k := range keys {
		v := strings.TrimSpace(os.Getenv(k))
		if v == "" {
			t.Skipf("%s is not set (configure .env or env vars)", k)
		}
		vals[k] = v
	}
	return vals
}

func findUpwards(name string) (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		candidate := filepath.Join(dir, name)
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// ParseEnv reads KEY=VALUE lines. Blank lines, comments and an optional
// "export " prefix are accepted; one level of matching quotes is stripped.
func ParseEnv(r io.Reader) (map[string]string, error) {
	vars := map[string]string{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

		key, val, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		val = strings.TrimSpace(val)
		if len(val) >= 2 && (val[0] == '"' || val[0] == '\'') && val[len(val)-1] == val[0] {
			val = val[1 : len(val)-1]
		}
		vars[key] = val
	}
	return vars, sc.Err()
}
