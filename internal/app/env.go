package app

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// LoadEnvFiles loads dotenv files of KEY=VALUE pairs into the process
// environment. Later files override earlier ones, but a variable that was
// already set to a non-empty value before loading is left alone. Missing files
// are skipped. Lines may carry an "export " prefix; values are not expanded.
func LoadEnvFiles(paths ...string) error {
	preset := make(map[string]bool)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 && i < len(kv)-1 {
			preset[kv[:i]] = true
		}
	}
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		pairs, err := readEnvFile(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env %s: %w", p, err)
		}
		for _, kv := range pairs {
			if preset[kv[0]] {
				continue
			}
			if err := os.Setenv(kv[0], kv[1]); err != nil {
				return fmt.Errorf("set %s: %w", kv[0], err)
			}
		}
	}
	return nil
}

func readEnvFile(path string) ([][2]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pairs [][2]string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		eq := strings.IndexByte(line, '=')
		if eq <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		pairs = append(pairs, [2]string{key, unquote(strings.TrimSpace(line[eq+1:]))})
	}
	return pairs, scanner.Err()
}

// unquote strips one pair of matching quotes. Unquoted values lose a trailing
// " # comment".
func unquote(val string) string {
	if len(val) >= 2 {
		if (val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'') {
			return val[1 : len(val)-1]
		}
	}
	if i := strings.Index(val, " #"); i >= 0 {
		val = strings.TrimSpace(val[:i])
	}
	return val
}
