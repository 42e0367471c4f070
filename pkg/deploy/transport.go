package deploy

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"autonet/pkg/errdefs"
	"autonet/pkg/model"
)

// Transport moves a staged tree to a router and activates it. The narrow
// interface keeps the orchestrator testable without a fleet.
type Transport interface {
	Upload(ctx context.Context, router model.Router, srcDir string) error
	Activate(ctx context.Context, router model.Router) error
}

// RsyncSSH pushes with rsync --delete over ssh, then reloads the daemon
// in place so established sessions stay up.
type RsyncSSH struct {
	User      string
	RemoteDir string
	Timeout   time.Duration
	// ReloadCommands run on the router after a successful upload.
	ReloadCommands []string
}

func NewRsyncSSH(user, remoteDir string, timeout time.Duration) *RsyncSSH {
	return &RsyncSSH{
		User:      user,
		RemoteDir: remoteDir,
		Timeout:   timeout,
		ReloadCommands: []string{
			"birdc configure",
			"birdc6 configure || true",
		},
	}
}

func (t *RsyncSSH) sshCommand() string {
	return fmt.Sprintf("ssh -o BatchMode=yes -o ConnectTimeout=%d -l %s", int(t.Timeout.Seconds()), t.User)
}

// Upload mirrors srcDir to the router's remote directory. --delete makes
// the remote tree exactly match the staged one, removing stale peer files.
func (t *RsyncSSH) Upload(ctx context.Context, router model.Router, srcDir string) error {
	if !strings.HasSuffix(srcDir, "/") {
		srcDir += "/"
	}
	dest := fmt.Sprintf("%s:%s", router.FQDN, t.RemoteDir)
	cmd := exec.CommandContext(ctx, "rsync", "-az", "--delete", "-e", t.sshCommand(), srcDir, dest)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("rsync to %s: %w: %v output=%s", router.FQDN, errdefs.ErrUpload, err, string(out))
	}
	return nil
}

// Activate reloads the routing daemon on the router. A failure here after
// a successful upload leaves new files under an old running config, which
// callers must report as its own outcome.
func (t *RsyncSSH) Activate(ctx context.Context, router model.Router) error {
	for _, remote := range t.ReloadCommands {
		cmd := exec.CommandContext(ctx, "ssh", "-o", "BatchMode=yes",
			"-o", fmt.Sprintf("ConnectTimeout=%d", int(t.Timeout.Seconds())),
			"-l", t.User, router.FQDN, remote)
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("reload on %s (%q): %w: %v output=%s", router.FQDN, remote, errdefs.ErrActivation, err, string(out))
		}
	}
	return nil
}
