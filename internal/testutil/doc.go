// Package testutil contains helpers shared by the test suites: builders for
// events and game records, and a fake UCI engine that lets a test binary act
// as its own engine executable. It is not intended for production usage.
package testutil
