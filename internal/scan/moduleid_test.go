package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModuleID(t *testing.T) {
	tests := []struct {
		prefix string
		file   string
		want   string
	}{
		{"", "index.js", ""},
		{"/a", "index.js", "a"},
		{"/a", "b.js", "a/b"},
		{"", "main.js", "main"},
		{"/is/a/module", "index.js", "is/a/module"},
		{"/is/a", "bb.js", "is/a/bb"},
		{"is/a/", "bb.js", "is/a/bb"},
		{"/a", "lib.min.js", "a/lib.min"},
		{"/a", "README", "a/README"},
		{"/a", ".eslintrc", "a/.eslintrc"},
		{"/a", "index", "a"},
		{"/a", "index.test.js", "a/index.test"},
		// decomposed "é" folds onto the precomposed form
		{"/café", "x.js", "café/x"},
	}
	for _, tt := range tests {
		t.Run(tt.prefix+"|"+tt.file, func(t *testing.T) {
			assert.Equal(t, tt.want, ModuleID(tt.prefix, tt.file))
		})
	}
}
