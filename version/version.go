package version

import "fmt"

const (
	VERSION = "0.1.0"
	COMMIT  = "dev"
	BUILT   = ""
)

// Runtime is the highest .stk container version this build executes.
const Runtime = 1

func Version() string {
	return fmt.Sprintf("%s (%s)", VERSION, BUILT)
}
