package remediation

import (
	"os"
	"testing"

	"bizops_server/pkg/snowflake"
)

func TestMain(m *testing.M) {
	if err := snowflake.Init(1); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}
