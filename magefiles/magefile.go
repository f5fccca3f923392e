//go:build mage

// Package main provides build targets for freshset using Mage.
//
// Usage:
//
//	mage build          Compile the freshset binary to bin/
//	mage test:all       Run all tests
//	mage test:unit      Run tests without the slow training cases
//	mage test:cover     Run all tests with a coverage profile
//	mage lint           Run golangci-lint
//	mage clean          Remove build artifacts
//	mage install        Install freshset to GOPATH/bin
//	mage stats          Print Go lines of code per package
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binLint    = "golangci-lint"
	binaryName = "freshset"
	binaryDir  = "bin"
	cmdDir     = "./cmd/freshset"
	coverFile  = "coverage.out"
)

// Build compiles the freshset binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Test groups test targets.
type Test mg.Namespace

// All runs every test.
func (Test) All() error {
	return sh.RunV(binGo, "test", "./...")
}

// Unit runs tests in short mode.
func (Test) Unit() error {
	return sh.RunV(binGo, "test", "-short", "./...")
}

// Cover runs every test and writes coverage.out.
func (Test) Cover() error {
	if err := sh.RunV(binGo, "test", "-coverprofile="+coverFile, "./..."); err != nil {
		return err
	}
	return sh.RunV(binGo, "tool", "cover", "-func="+coverFile)
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV(binLint, "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	if err := os.Remove(coverFile); err != nil && !os.IsNotExist(err) {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}

// Stats prints production and test lines of Go code per package directory.
func Stats() error {
	type counts struct{ prod, test int }
	byDir := make(map[string]*counts)

	err := filepath.WalkDir(".", func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if path != "." && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") ||
				name == "vendor" || name == binaryDir || name == "magefiles") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		n, err := countLines(path)
		if err != nil {
			return nil
		}
		dir := filepath.Dir(path)
		if byDir[dir] == nil {
			byDir[dir] = &counts{}
		}
		if strings.HasSuffix(path, "_test.go") {
			byDir[dir].test += n
		} else {
			byDir[dir].prod += n
		}
		return nil
	})
	if err != nil {
		return err
	}

	dirs := make([]string, 0, len(byDir))
	for d := range byDir {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	var prod, test int
	for _, d := range dirs {
		c := byDir[d]
		fmt.Printf("%-24s %6d %6d\n", d, c.prod, c.test)
		prod += c.prod
		test += c.test
	}
	fmt.Printf("%-24s %6d %6d\n", "total", prod, test)
	return nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	return count, scanner.Err()
}
