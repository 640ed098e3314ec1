package index

import "strings"

// buildArtifactPatterns excludes compiled output, minified files, lock
// files, and source maps from the live-read fallback path (§4.4
// "Fallback"): these are present on disk but add no retrieval value and
// would otherwise dominate the code chunk set by volume.
var buildArtifactPatterns = []string{
	".min.js", ".min.css", ".map", ".pyc", ".class", ".o", ".so", ".dll",
	".exe", ".wasm", "package-lock.json", "yarn.lock", "pnpm-lock.yaml",
	"go.sum", "Cargo.lock", "composer.lock",
}

func isBuildArtifact(path string) bool {
	lower := strings.ToLower(path)
	for _, p := range buildArtifactPatterns {
		if strings.HasSuffix(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
