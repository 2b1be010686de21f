package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"storyboard/internal/config"
	"storyboard/internal/logging"
	"storyboard/internal/session"
)

const defaultDocument = "storyboard.yaml"

type commandContext struct {
	configFlag *string
	fileFlag   *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, fileFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		fileFlag:   fileFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

// documentPath returns the --file value with ~ expanded.
func (c *commandContext) documentPath() (string, error) {
	path := defaultDocument
	if c.fileFlag != nil && strings.TrimSpace(*c.fileFlag) != "" {
		path = strings.TrimSpace(*c.fileFlag)
	}
	return config.ExpandPath(path)
}

// withSession opens the document, runs fn, and saves afterwards when the
// storyboard was modified, even if fn failed part way. Read-only callers skip the document lock.
func (c *commandContext) withSession(cmd *cobra.Command, readOnly bool, fn func(*session.Session) error, extra ...session.Option) (err error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}
	path, err := c.documentPath()
	if err != nil {
		return err
	}
	opts := append([]session.Option{session.WithLogger(logger)}, extra...)
	if readOnly {
		opts = append(opts, session.WithoutLock())
	}
	sess, err := session.Open(cfg, path, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := sess.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	// Edits that landed before a failure are still written.
	runErr := fn(sess)
	if !readOnly && sess.Board().Unsaved {
		if saveErr := sess.Save(); saveErr != nil {
			return errors.Join(runErr, saveErr)
		}
	}
	return runErr
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
