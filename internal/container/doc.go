// Package container inspects and repairs encoded audio fragments. It sniffs
// the real container format from magic bytes, extracts the header/init
// segment of the first complete fragment, and prepends that cached header to
// later headerless fragments so each dispatched chunk is independently
// decodable.
package container
