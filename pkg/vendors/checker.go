package vendors

import (
	"fmt"
	"os/exec"

	"autonet/pkg/errdefs"
)

// Checker is the narrow seam to an external syntax checker, keeping the
// orchestration logic independent of which vendor tool is invoked.
type Checker interface {
	Check(path string) error
}

// ExecChecker invokes a checker binary with fixed arguments plus the path.
type ExecChecker struct {
	Binary string
	Args   []string
}

func (c ExecChecker) Check(path string) error {
	args := append(append([]string(nil), c.Args...), path)
	out, err := exec.Command(c.Binary, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s syntax check of %s: %w: %v output=%s", c.Binary, path, errdefs.ErrValidation, err, string(out))
	}
	return nil
}

// lookPath reports whether a binary is resolvable, as a readiness probe.
func lookPath(binary string) error {
	if _, err := exec.LookPath(binary); err != nil {
		return fmt.Errorf("%s: %w: %v", binary, errdefs.ErrExternalTool, err)
	}
	return nil
}
