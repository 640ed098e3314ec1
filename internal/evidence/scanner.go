package evidence

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// skipDirs is the hard-coded skip-list for well-known noisy directories
// (§4.2 "Workspace scanner").
var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, "dist": true,
	"build": true, ".next": true, ".cache": true, ".rl4": true,
	"target": true, "__pycache__": true, ".venv": true, "venv": true,
	".idea": true, ".vscode": true, "coverage": true,
}

// ScannedFile is one entry the scanner emits.
type ScannedFile struct {
	Path     string // relative to workspace root
	AbsPath  string
	Size     int64
	ModTime  time.Time
}

// ScanResult is the outcome of a single workspace scan.
type ScanResult struct {
	Files     []ScannedFile
	Truncated bool
}

// ScannerConfig mirrors rl4.ScannerConfig without importing the root
// package (which would create an import cycle).
type ScannerConfig struct {
	MaxFileBytes int64
	MaxFiles     int
	Deadline     time.Duration
}

// gitignoreToRegex converts a single .gitignore glob pattern to an anchored
// regular expression. It supports the common subset used in practice: '*',
// '**', '?', leading '/' anchoring, and trailing '/' directory-only marks.
func gitignoreToRegex(pattern string) (*regexp.Regexp, bool) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return nil, false
	}
	negate := strings.HasPrefix(pattern, "!")
	if negate {
		// Negation patterns are rare in practice for this kind of tree;
		// treat them as non-matching so they never exclude a file (the
		// pattern set only grows conservatively).
		return nil, false
	}
	anchored := strings.HasPrefix(pattern, "/")
	pattern = strings.TrimPrefix(pattern, "/")
	dirOnly := strings.HasSuffix(pattern, "/")
	pattern = strings.TrimSuffix(pattern, "/")

	var b strings.Builder
	if anchored {
		b.WriteString("^")
	} else {
		b.WriteString("(^|.*/)")
	}
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				b.WriteString(".*")
				i++
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("[^/]")
		case '.':
			b.WriteString(`\.`)
		default:
			b.WriteString(regexp.QuoteMeta(string(runes[i])))
		}
	}
	if dirOnly {
		b.WriteString("/.*$")
	} else {
		b.WriteString("(/.*)?$")
	}
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, false
	}
	return re, true
}

// loadGitignore parses a .gitignore file, if present, into a list of
// anchored regexes. Malformed patterns are skipped silently.
func loadGitignore(root string) []*regexp.Regexp {
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var patterns []*regexp.Regexp
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if re, ok := gitignoreToRegex(sc.Text()); ok {
			patterns = append(patterns, re)
		}
	}
	return patterns
}

// Scan performs a breadth-first walk of root, honoring the skip-list,
// .gitignore patterns, per-file size cap, total-file cap, and wall-clock
// deadline named in §4.2.
func Scan(root string, cfg ScannerConfig) ScanResult {
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = 1 << 20
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 20000
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = 8 * time.Second
	}

	ignore := loadGitignore(root)
	deadline := time.Now().Add(cfg.Deadline)

	var result ScanResult
	queue := []string{root}
	for len(queue) > 0 {
		if time.Now().After(deadline) {
			result.Truncated = true
			break
		}
		if len(result.Files) >= cfg.MaxFiles {
			result.Truncated = true
			break
		}

		dir := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if len(result.Files) >= cfg.MaxFiles {
				result.Truncated = true
				break
			}
			abs := filepath.Join(dir, e.Name())
			rel, err := filepath.Rel(root, abs)
			if err != nil {
				continue
			}
			if e.IsDir() {
				if skipDirs[e.Name()] {
					continue
				}
				if matchesAny(ignore, rel+"/") {
					continue
				}
				queue = append(queue, abs)
				continue
			}
			if matchesAny(ignore, rel) {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			if info.Size() > cfg.MaxFileBytes {
				continue
			}
			result.Files = append(result.Files, ScannedFile{
				Path: rel, AbsPath: abs, Size: info.Size(), ModTime: info.ModTime(),
			})
		}
	}
	return result
}

func matchesAny(patterns []*regexp.Regexp, path string) bool {
	path = filepath.ToSlash(path)
	for _, p := range patterns {
		if p.MatchString(path) {
			return true
		}
	}
	return false
}
