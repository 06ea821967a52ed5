// Package test contains assertion helpers and setup for the test suite.
package test

import (
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/XBurnsX/toutiebudget-sync/models/db"
	"github.com/XBurnsX/toutiebudget-sync/models/syncjobs"
)

// SetUp opens a fresh SQLite-backed job store in a per-test temp directory.
// The database disappears with the temp dir, so tests stay hermetic.
func SetUp(t testing.TB) *syncjobs.Store {
	t.Helper()
	connector := &db.FileConnector{Path: filepath.Join(t.TempDir(), "sync.db")}
	conn, err := connector.Connect()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	store, err := syncjobs.New(conn)
	if err != nil {
		t.Fatal(err)
	}
	return store
}

// Return short format caller info for printing errors, so errors don't all
// appear to come from test.go.
func caller() string {
	_, file, line, _ := runtime.Caller(2)
	splits := strings.Split(file, "/")
	filename := splits[len(splits)-1]
	return fmt.Sprintf("%s:%d:", filename, line)
}

// Assert a boolean
func Assert(t testing.TB, result bool, message string) {
	t.Helper()
	if !result {
		t.Fatalf("%s %s", caller(), message)
	}
}

// AssertNotError checks that err is nil
func AssertNotError(t testing.TB, err error, message string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s %s: %s", caller(), message, err)
	}
}

// AssertError checks that err is non-nil
func AssertError(t testing.TB, err error, message string) {
	t.Helper()
	if err == nil {
		t.Fatalf("%s %s: expected error but received none", caller(), message)
	}
}

// AssertEquals uses the equality operator (==) to measure one and two
func AssertEquals(t testing.TB, one interface{}, two interface{}) {
	t.Helper()
	if one != two {
		t.Fatalf("%s [%v] != [%v]", caller(), one, two)
	}
}

// AssertDeepEquals uses the reflect.DeepEqual method to measure one and two
func AssertDeepEquals(t testing.TB, one interface{}, two interface{}) {
	t.Helper()
	if !reflect.DeepEqual(one, two) {
		t.Fatalf("%s [%+v] !(deep)= [%+v]", caller(), one, two)
	}
}

// AssertContains determines whether needle can be found in haystack
func AssertContains(t testing.TB, haystack string, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("%s String [%s] does not contain [%s]", caller(), haystack, needle)
	}
}
