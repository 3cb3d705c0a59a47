package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/labgate/internal/logger"
	"github.com/marmos91/labgate/pkg/auth"
	"github.com/marmos91/labgate/pkg/directory"
)

// HomeDirectoryConfig configures home directory creation.
type HomeDirectoryConfig struct {
	// Script is run as "<script> <username> <path>".
	Script string `mapstructure:"script" yaml:"script" validate:"required"`

	// Attribute holds the home path in the directory. Default: homeDirectory.
	Attribute string `mapstructure:"attribute" yaml:"attribute"`

	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *HomeDirectoryConfig) ApplyDefaults() {
	if c.Attribute == "" {
		c.Attribute = "homeDirectory"
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// HomeDirectory runs the provisioning script when the user's home
// directory does not exist yet.
type HomeDirectory struct {
	cfg    HomeDirectoryConfig
	dir    directory.Config
	dialer directory.Dialer
	runner CommandRunner
	stat   func(string) (fs.FileInfo, error)
}

// NewHomeDirectory returns the step. dialer is used only when the login
// did not supply a home path and may be nil.
func NewHomeDirectory(cfg HomeDirectoryConfig, dir directory.Config, dialer directory.Dialer, runner CommandRunner) (*HomeDirectory, error) {
	cfg.ApplyDefaults()
	dir.ApplyDefaults()
	if cfg.Script == "" {
		return nil, auth.Configuration("home directory step: no script configured")
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &HomeDirectory{cfg: cfg, dir: dir, dialer: dialer, runner: runner, stat: os.Stat}, nil
}

func (s *HomeDirectory) Name() string { return StepHomeDirectory }

func (s *HomeDirectory) Setup(ctx context.Context, res *auth.Result) error {
	info := res.Info
	home, err := s.resolve(ctx, info)
	if err != nil {
		return err
	}

	if _, err := s.stat(home); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", home, err)
	}

	if err := checkExecutable(s.cfg.Script); err != nil {
		return fmt.Errorf("home directory script: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	out, err := s.runner.Run(ctx, s.cfg.Script, info.Username(), home)
	if err != nil {
		logger.ErrorCtx(ctx, "Home directory script failed",
			logger.Path(home),
			logger.KeyScript, s.cfg.Script,
			"output", strings.TrimSpace(string(out)))
		return fmt.Errorf("run %s: %w", s.cfg.Script, err)
	}

	logger.InfoCtx(ctx, "Created home directory",
		logger.Username(info.Username()),
		logger.Path(home))
	return nil
}

// resolve returns the canonical home path of the principal, reading the
// directory when the login did not carry one.
func (s *HomeDirectory) resolve(ctx context.Context, info auth.Info) (string, error) {
	home, ok := info.Get(auth.HomeDirectory)
	if !ok {
		var err error
		if home, err = s.lookup(ctx, info.Username()); err != nil {
			return "", err
		}
	}

	home = filepath.Clean(home)
	if !filepath.IsAbs(home) {
		return "", fmt.Errorf("home directory %q is not absolute", home)
	}
	return home, nil
}

func (s *HomeDirectory) lookup(ctx context.Context, username string) (string, error) {
	if s.dialer == nil || s.dir.BaseDN == "" {
		return "", errors.New("login supplied no home directory and no directory is configured")
	}
	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		return "", fmt.Errorf("dial directory: %w", err)
	}
	defer func() { _ = conn.Close() }()

	entry, err := directory.FindOne(conn, s.dir.BaseDN, s.dir.UserFilterFor(username), []string{s.cfg.Attribute})
	if err != nil {
		return "", fmt.Errorf("find account %s: %w", username, err)
	}
	home := entry.GetEqualFoldAttributeValue(s.cfg.Attribute)
	if home == "" {
		return "", fmt.Errorf("account %s has no %s", username, s.cfg.Attribute)
	}
	return home, nil
}
