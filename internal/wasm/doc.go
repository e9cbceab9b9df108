// Package wasm decodes the parts of a WebAssembly binary that bounds-check
// analysis needs: memory declarations, function bodies and the load and store
// instructions inside them.
package wasm
