//go:build kind

package kind

import (
	"fmt"
	"os"
	"strings"
	"testing"
)

var fw *Framework

// Missing local tooling skips the suite rather than failing it.
var skipReasons = []string{
	"kind not found",
	"docker not running",
	"kubectl not found",
}

func TestMain(m *testing.M) {
	fw = NewFramework()

	if err := fw.Setup(); err != nil {
		for _, reason := range skipReasons {
			if strings.Contains(err.Error(), reason) {
				fmt.Printf("SKIP: %s\n", reason)
				os.Exit(0)
			}
		}
		fmt.Printf("kind framework setup failed: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	fw.Teardown()
	os.Exit(code)
}
