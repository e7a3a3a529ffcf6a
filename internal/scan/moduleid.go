package scan

import (
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// indexName is the file stem that collapses onto its directory.
const indexName = "index"

// ModuleID computes the logical id for file inside the directory named by
// prefix, a slash-separated path relative to the scan root with an optional
// leading slash ("" or "/" for the root itself).
//
// Names are NFC-normalized so that precomposed and decomposed spellings of the
// same file name produce one id. The last extension is dropped unless that
// would leave nothing (".eslintrc" stays as is).
func ModuleID(prefix, file string) string {
	name := norm.NFC.String(file)
	if stem := strings.TrimSuffix(name, path.Ext(name)); stem != "" {
		name = stem
	}
	if name == indexName {
		name = ""
	}

	prefix = norm.NFC.String(filepath.ToSlash(prefix))
	prefix = strings.Trim(prefix, "/")

	if prefix != "" && name != "" {
		return prefix + "/" + name
	}
	return prefix + name
}
