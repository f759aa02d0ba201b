package search

import (
	"strings"

	"github.com/jamesainslie/salvage/pkg/salvage/types"
)

// Categories maps category names to their extensions.
var Categories = map[string][]string{
	"image": {
		".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff", ".tif", ".webp", ".svg", ".ico", ".heic", ".heif", ".raw",
	},
	"video": {
		".mp4", ".mkv", ".avi", ".mov", ".wmv", ".flv", ".webm", ".m4v", ".mpeg", ".mpg",
	},
	"audio": {
		".mp3", ".flac", ".wav", ".aac", ".ogg", ".wma", ".m4a", ".opus", ".aiff",
	},
	"document": {
		".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".odt", ".ods", ".odp", ".rtf", ".txt", ".md", ".epub",
	},
	"archive": {
		".zip", ".tar", ".gz", ".bz2", ".xz", ".7z", ".rar", ".tgz", ".zst", ".salv",
	},
	"code": {
		".go", ".py", ".js", ".ts", ".java", ".c", ".cpp", ".h", ".hpp", ".rs", ".rb", ".php", ".swift", ".kt", ".cs", ".sh", ".html", ".css",
	},
	"executable": {
		".exe", ".dll", ".so", ".dylib", ".bin", ".msi", ".app", ".bat", ".cmd", ".com", ".ps1", ".jar",
	},
}

// textExtensions are searched for content even when their MIME type is not text/*.
var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".log": true, ".csv": true, ".tsv": true,
	".json": true, ".yaml": true, ".yml": true, ".toml": true, ".xml": true,
	".ini": true, ".cfg": true, ".conf": true, ".env": true, ".sql": true,
	".html": true, ".htm": true, ".css": true, ".js": true, ".ts": true,
	".go": true, ".py": true, ".rb": true, ".rs": true, ".java": true,
	".c": true, ".h": true, ".cpp": true, ".sh": true, ".bash": true,
}

// validType reports whether t names a category or has a recognizable form.
func validType(t string) bool {
	if _, ok := Categories[strings.ToLower(t)]; ok {
		return true
	}
	return !strings.ContainsAny(t, " \t")
}

// matchType reports whether rec satisfies a type filter.
func matchType(rec *types.FileRecord, t string) bool {
	if rec.IsDir {
		return false
	}
	lower := strings.ToLower(t)
	ext := rec.Ext()

	switch {
	case strings.HasPrefix(lower, "."):
		return ext == lower
	case strings.Contains(lower, "/"):
		return strings.Contains(strings.ToLower(rec.MimeType), lower)
	}

	if exts, ok := Categories[lower]; ok {
		for _, e := range exts {
			if e == ext {
				return true
			}
		}
		return false
	}
	return ext == "."+lower
}

// isText reports whether content search applies to rec.
func isText(rec *types.FileRecord) bool {
	return textExtensions[rec.Ext()] || strings.HasPrefix(rec.MimeType, "text/")
}
