// Package extract discovers the module references in a source file and renders
// the file into a self-registering code chunk.
//
// Discovery is lexical. A reference is the call token applied to exactly one
// quoted string literal; nothing is evaluated, so references inside comments,
// strings or dead branches are reported as well.
package extract
