// Package memory provides in-memory implementations of the storage
// interfaces. They stand in for the host platform's session store and the
// browser's durable local storage in tests and in standalone development,
// where no embedding host exists.
package memory
