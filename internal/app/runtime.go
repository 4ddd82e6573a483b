package app

import (
	"os"
	"strconv"
	"sync/atomic"

	"github.com/odyssey-erp/odyssey-ledger/internal/testing/guard"
)

// testMode caches the parsed flag; nil until first read.
var testMode atomic.Pointer[bool]

// InTestMode reports whether the binaries should exit before dialing Postgres, Redis or
// the network. Any value strconv.ParseBool accepts as true enables it.
func InTestMode() bool {
	if v := testMode.Load(); v != nil {
		return *v
	}
	return RefreshTestMode()
}

// RefreshTestMode re-reads the flag after the environment changed and returns it.
func RefreshTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(guard.TestModeEnv))
	on = on && err == nil
	testMode.Store(&on)
	return on
}
