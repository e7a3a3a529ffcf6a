package extract

import "strings"

// Registry is the name of the shared exports registry in the bundle.
const Registry = "__module_exports_cache"

var idEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// Quote renders id as a single-quoted script string literal.
func Quote(id string) string {
	return "'" + idEscaper.Replace(id) + "'"
}

// RenderChunk wraps text so that it registers its exports slot under id and
// runs in a scope that only sees the module and exports handles.
func RenderChunk(id, path, text string) string {
	slot := Registry + "[" + Quote(id) + "]"

	var b strings.Builder
	b.Grow(len(text) + len(path) + 4*len(slot) + 128)
	b.WriteString("/**\n* require-concat origin file : ")
	b.WriteString(path)
	b.WriteString("\n*/\n\n")
	b.WriteString(slot)
	b.WriteString(" = { exports: {} };\n")
	b.WriteString("(function(module, exports) { \n")
	b.WriteString(text)
	b.WriteString("})(")
	b.WriteString(slot)
	b.WriteString(", ")
	b.WriteString(slot)
	b.WriteString(".exports);")
	return b.String()
}
