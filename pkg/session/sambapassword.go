package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/marmos91/labgate/internal/logger"
	"github.com/marmos91/labgate/pkg/auth"
	"github.com/marmos91/labgate/pkg/directory"
	"github.com/marmos91/labgate/pkg/samba"
	"github.com/marmos91/labgate/pkg/scheduler"
)

var sambaPasswordAttrs = []string{"sambaLMPassword", "sambaNTPassword"}

// SambaPassword mirrors the password entered at login into the
// directory's Samba hashes.
type SambaPassword struct {
	dir    directory.Config
	dialer directory.Dialer
	queue  scheduler.QueueChecker
	now    func() time.Time
}

// NewSambaPassword returns the step. Accounts are found below
// dir.BaseDN with dir.UserFilter. A nil queue checker never reports a
// session.
func NewSambaPassword(dir directory.Config, dialer directory.Dialer, queue scheduler.QueueChecker) (*SambaPassword, error) {
	dir.ApplyDefaults()
	if dialer == nil || dir.BaseDN == "" {
		return nil, auth.Configuration("samba password step: no directory configured")
	}
	if queue == nil {
		queue = scheduler.Disabled{}
	}
	return &SambaPassword{dir: dir, dialer: dialer, queue: queue, now: time.Now}, nil
}

func (s *SambaPassword) Name() string { return StepSambaPassword }

func (s *SambaPassword) Setup(ctx context.Context, res *auth.Result) error {
	info := res.Info
	password, ok := info.Password()
	if !ok {
		return fmt.Errorf("%s login exposes no password", res.Type)
	}

	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("dial directory: %w", err)
	}
	defer func() { _ = conn.Close() }()

	entry, err := directory.FindOne(conn, s.dir.BaseDN, s.dir.UserFilterFor(info.Username()), sambaPasswordAttrs)
	if err != nil {
		return fmt.Errorf("find account %s: %w", info.Username(), err)
	}

	hashes := samba.HashPassword(password)
	if hashes.Matches(entry.GetAttributeValue("sambaLMPassword"), entry.GetAttributeValue("sambaNTPassword")) {
		return nil
	}

	// a batch login may have set the password for a running session
	principal := info.Namespace() + ":" + info.Username()
	status, err := s.queue.IsUserInQueue(ctx, principal)
	if err != nil {
		return fmt.Errorf("query scheduler: %w", err)
	}
	if status.InSession {
		logger.InfoCtx(ctx, "User in session, not restoring Samba password",
			logger.Username(info.Username()))
		return nil
	}

	req := ldap.NewModifyRequest(entry.DN, nil)
	req.Replace("sambaLMPassword", []string{hashes.LM})
	req.Replace("sambaNTPassword", []string{hashes.NT})
	req.Replace("sambaPwdLastSet", []string{strconv.FormatInt(s.now().Unix(), 10)})
	if err := conn.Modify(req); err != nil {
		return fmt.Errorf("update samba hashes of %s: %w", entry.DN, err)
	}

	logger.InfoCtx(ctx, "Restored Samba password", logger.DN(entry.DN))
	return nil
}
