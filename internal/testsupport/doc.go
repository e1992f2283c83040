// Package testsupport holds shared helpers for package tests: temp-dir
// configs, stub binaries, sized fixture files and an opened history store.
package testsupport
