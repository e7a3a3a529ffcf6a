// Package sink writes an assembled bundle: first the preamble that bootstraps
// the module registry, then one chunk per module in the order received.
package sink
