package ingest

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/rlmcore/rlmcore/docstore"
)

// docTypePatterns are doublestar glob patterns used to filter a repo tree
// by doc_type. The lists are fixed in code; no config path extends them.
var docTypePatterns = map[docstore.DocType][]string{
	docstore.DocTypeDocumentation: {
		"**/*.md", "**/*.mdx", "**/*.txt", "**/*.rst",
	},
	docstore.DocTypeCode: {
		"**/*.go", "**/*.py", "**/*.js", "**/*.ts", "**/*.tsx", "**/*.jsx",
		"**/*.java", "**/*.rb", "**/*.rs", "**/*.c", "**/*.h", "**/*.cpp",
		"**/*.hpp", "**/*.cs", "**/*.php", "**/*.swift", "**/*.kt",
		"**/*.scala", "**/*.sh", "**/*.sql", "**/*.proto", "**/*.yaml",
		"**/*.yml", "**/*.json", "**/*.toml",
	},
	docstore.DocTypeMinimal: {
		"README*", "readme*", "**/README*", "**/readme*",
	},
}

var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".pdf": true, ".zip": true, ".tar": true, ".gz": true, ".bin": true,
	".exe": true, ".so": true, ".dylib": true, ".woff": true, ".woff2": true,
	".ttf": true, ".mp4": true, ".mp3": true, ".wasm": true,
}

func matchesDocType(docType docstore.DocType, path string) bool {
	patterns, ok := docTypePatterns[docType]
	if !ok {
		return true // unrecognized doc_type: don't filter, let the caller decide
	}
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

func isBinaryExtension(path string) bool {
	return binaryExtensions[strings.ToLower(filepath.Ext(path))]
}
