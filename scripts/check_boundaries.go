package main

import (
	"flag"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// check_boundaries enforces the layering of every service under contexts/:
//
//	domain      -> own domain, stdlib
//	ports       -> own domain, contracts, stdlib
//	application -> own application/domain/ports, contracts, stdlib
//
// No service imports another service, and inner layers never reach adapters
// or internal/ runtime packages. Tests are exempt.

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

// layerPolicy lists import prefixes a layer may use. Entries starting with
// "./" are relative to the service root; the rest to the module root.
type layerPolicy struct {
	allowed []string
}

var policies = map[string]layerPolicy{
	"domain":      {allowed: []string{"./domain"}},
	"ports":       {allowed: []string{"./domain", "contracts"}},
	"application": {allowed: []string{"./application", "./domain", "./ports", "contracts"}},
}

type scanner struct {
	modulePath string
	fset       *token.FileSet
	violations []violation
}

func main() {
	root := flag.String("root", "contexts", "bounded-context root to scan")
	modulePath := flag.String("module", "commonpool", "go module path")
	flag.Parse()

	s := &scanner{modulePath: *modulePath, fset: token.NewFileSet()}
	if err := filepath.WalkDir(*root, s.visit); err != nil {
		fmt.Fprintf(os.Stderr, "scan %s: %v\n", *root, err)
		os.Exit(2)
	}
	if len(s.violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(s.violations, func(i, j int) bool {
		a, b := s.violations[i], s.violations[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Import < b.Import
	})
	fmt.Printf("%d boundary violation(s):\n", len(s.violations))
	for _, v := range s.violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

func (s *scanner) visit(path string, d fs.DirEntry, err error) error {
	if err != nil {
		return err
	}
	if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
		return nil
	}

	normalized := filepath.ToSlash(path)
	parts := strings.Split(normalized, "/")
	if len(parts) < 4 || parts[0] != "contexts" {
		return nil
	}
	service := fmt.Sprintf("%s/contexts/%s/%s", s.modulePath, parts[1], parts[2])
	s.checkFile(path, normalized, service, parts[3])
	return nil
}

func (s *scanner) checkFile(path string, normalized string, service string, layer string) {
	file, err := parser.ParseFile(s.fset, path, nil, parser.ImportsOnly)
	if err != nil {
		s.report(normalized, 1, "", "file must parse")
		return
	}
	policy, layered := policies[layer]

	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, `"`)
		line := s.fset.Position(imp.Pos()).Line

		if s.isContext(importPath) && !within(importPath, service) {
			s.report(normalized, line, importPath, "cross-service imports are forbidden")
		}
		if !layered {
			continue
		}
		if strings.Contains(importPath, "/adapters/") {
			s.report(normalized, line, importPath, layer+" must not import adapters")
		}
		if s.isRuntime(importPath) {
			s.report(normalized, line, importPath, layer+" must not import runtime infrastructure")
		}
		if !s.isStdlib(importPath) && !s.permitted(importPath, service, policy) {
			s.report(normalized, line, importPath, layer+" import is outside explicit allowlist")
		}
	}
}

func (s *scanner) report(file string, line int, importPath string, rule string) {
	s.violations = append(s.violations, violation{File: file, Line: line, Import: importPath, Rule: rule})
}

func (s *scanner) permitted(importPath string, service string, policy layerPolicy) bool {
	for _, prefix := range policy.allowed {
		if rel, ok := strings.CutPrefix(prefix, "./"); ok {
			prefix = service + "/" + rel
		} else {
			prefix = s.modulePath + "/" + prefix
		}
		if within(importPath, prefix) {
			return true
		}
	}
	return false
}

func (s *scanner) isContext(importPath string) bool {
	return strings.HasPrefix(importPath, s.modulePath+"/contexts/")
}

func (s *scanner) isRuntime(importPath string) bool {
	return strings.HasPrefix(importPath, s.modulePath+"/internal/") ||
		strings.HasPrefix(importPath, s.modulePath+"/cmd/")
}

// isStdlib treats any import whose first element has no dot as standard
// library, the same heuristic the go tool uses.
func (s *scanner) isStdlib(importPath string) bool {
	if strings.HasPrefix(importPath, s.modulePath+"/") {
		return false
	}
	first, _, _ := strings.Cut(importPath, "/")
	return !strings.Contains(first, ".")
}

func within(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
