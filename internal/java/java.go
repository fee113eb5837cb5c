// Package java locates a Java interpreter for a requested major version.
//
// Acquiring runtimes is outside this module; callers that can install a
// runtime plug in their own Resolver.
package java

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/kiyonya/miocore/internal/logging"
)

var log = logging.L("java")

// ErrNoRuntime is returned when no interpreter for the major version exists.
var ErrNoRuntime = errors.New("java: no runtime found")

// Resolver returns a runnable interpreter path for a Java major version.
type Resolver interface {
	Resolve(ctx context.Context, major int) (string, error)
}

// Locator searches configured homes, then $JAVA_HOME, then PATH.
type Locator struct {
	// Homes maps a major version to a JDK or JRE home directory.
	Homes map[int]string

	// Getenv and LookPath default to os.Getenv and exec.LookPath.
	Getenv   func(string) string
	LookPath func(string) (string, error)
}

// Resolve implements Resolver.
func (l *Locator) Resolve(ctx context.Context, major int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	getenv := l.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	lookPath := l.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	if home, ok := l.Homes[major]; ok {
		bin := Executable(home)
		if _, err := os.Stat(bin); err != nil {
			return "", fmt.Errorf("java: configured home for %d: %w", major, err)
		}
		return bin, nil
	}

	if home := getenv("JAVA_HOME"); home != "" {
		bin := Executable(home)
		if v, err := ReleaseMajor(home); err == nil && v == major {
			if _, err := os.Stat(bin); err == nil {
				return bin, nil
			}
		}
	}

	bin, err := lookPath(executableName())
	if err != nil {
		return "", fmt.Errorf("%w: major %d", ErrNoRuntime, major)
	}
	if real, err := filepath.EvalSymlinks(bin); err == nil {
		home := filepath.Dir(filepath.Dir(real))
		if v, err := ReleaseMajor(home); err == nil && v != major {
			return "", fmt.Errorf("%w: major %d (PATH has %d)", ErrNoRuntime, major, v)
		}
	}
	log.Warn("using java from PATH without version check", "major", major, "path", bin)
	return bin, nil
}

// Executable returns the interpreter path inside a Java home.
func Executable(home string) string {
	return filepath.Join(home, "bin", executableName())
}

func executableName() string {
	if runtime.GOOS == "windows" {
		return "java.exe"
	}
	return "java"
}

// ReleaseMajor reads the major version from a Java home's release file.
func ReleaseMajor(home string) (int, error) {
	f, err := os.Open(filepath.Join(home, "release"))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok || key != "JAVA_VERSION" {
			continue
		}
		return ParseMajor(strings.Trim(value, `"`))
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("java: no JAVA_VERSION in %s", home)
}

// ParseMajor extracts the major version from a Java version string such as
// "1.8.0_292" or "17.0.2".
func ParseMajor(version string) (int, error) {
	parts := strings.Split(version, ".")
	first, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("java: parse version %q: %w", version, err)
	}
	if first == 1 && len(parts) > 1 {
		return strconv.Atoi(parts[1])
	}
	return first, nil
}

// Static always returns the same interpreter path.
type Static string

// Resolve implements Resolver.
func (s Static) Resolve(context.Context, int) (string, error) {
	return string(s), nil
}
