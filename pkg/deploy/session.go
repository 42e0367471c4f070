package deploy

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"regexp"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"autonet/pkg/errdefs"
)

// Session is an ephemeral ssh-agent holding the deployment key for the
// duration of one run. Close must run on every exit path so the key never
// outlives the run.
type Session struct {
	AuthSock string
	pid      int
	log      *zap.Logger
}

var agentVarRe = regexp.MustCompile(`(SSH_AUTH_SOCK|SSH_AGENT_PID)=([^;]+);`)

// StartSession launches ssh-agent, loads the key at keyPath into it, and
// exports SSH_AUTH_SOCK for the child rsync/ssh processes.
func StartSession(keyPath string, log *zap.Logger) (*Session, error) {
	out, err := exec.Command("ssh-agent", "-s").Output()
	if err != nil {
		return nil, fmt.Errorf("start ssh-agent: %w: %v", errdefs.ErrAuth, err)
	}
	s := &Session{log: log}
	for _, m := range agentVarRe.FindAllStringSubmatch(string(out), -1) {
		switch m[1] {
		case "SSH_AUTH_SOCK":
			s.AuthSock = m[2]
		case "SSH_AGENT_PID":
			s.pid, _ = strconv.Atoi(m[2])
		}
	}
	if s.AuthSock == "" || s.pid == 0 {
		return nil, fmt.Errorf("parse ssh-agent output: %w", errdefs.ErrAuth)
	}

	if err := s.addKey(keyPath); err != nil {
		s.Close()
		return nil, err
	}
	os.Setenv("SSH_AUTH_SOCK", s.AuthSock)
	log.Info("deployment ssh-agent ready", zap.Int("pid", s.pid))
	return s, nil
}

func (s *Session) addKey(keyPath string) error {
	raw, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("read deploy key %s: %w: %v", keyPath, errdefs.ErrAuth, err)
	}
	key, err := ssh.ParseRawPrivateKey(raw)
	if err != nil {
		return fmt.Errorf("parse deploy key %s: %w: %v", keyPath, errdefs.ErrAuth, err)
	}
	conn, err := net.Dial("unix", s.AuthSock)
	if err != nil {
		return fmt.Errorf("dial ssh-agent: %w: %v", errdefs.ErrAuth, err)
	}
	defer conn.Close()
	if err := agent.NewClient(conn).Add(agent.AddedKey{PrivateKey: key, Comment: "autonet deploy"}); err != nil {
		return fmt.Errorf("add deploy key to agent: %w: %v", errdefs.ErrAuth, err)
	}
	return nil
}

// Close kills the agent. Idempotent.
func (s *Session) Close() {
	if s.pid == 0 {
		return
	}
	if p, err := os.FindProcess(s.pid); err == nil {
		if err := p.Kill(); err != nil {
			s.log.Warn("kill ssh-agent", zap.Int("pid", s.pid), zap.Error(err))
		}
	}
	s.pid = 0
}
