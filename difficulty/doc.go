// Package difficulty maps skill levels to the time and depth budget handed
// to the search engine.
package difficulty
