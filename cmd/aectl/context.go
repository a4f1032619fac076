package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/autoeditor/autoeditor-agent/internal/config"
	"github.com/autoeditor/autoeditor-agent/internal/db"
	"github.com/autoeditor/autoeditor-agent/internal/form"
	"github.com/autoeditor/autoeditor-agent/internal/logging"
	"github.com/autoeditor/autoeditor-agent/internal/store"
)

type commandContext struct {
	stateFlag  *string
	binaryFlag *string

	configOnce sync.Once
	config     *config.EnvConfig
	configErr  error
}

func newCommandContext(stateFlag, binaryFlag *string) *commandContext {
	return &commandContext{
		stateFlag:  stateFlag,
		binaryFlag: binaryFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.EnvConfig, error) {
	c.configOnce.Do(func() {
		c.config, c.configErr = config.New()
	})
	return c.config, c.configErr
}

// withRepository opens the agent database for the duration of fn.
func (c *commandContext) withRepository(fn func(*store.SQLiteRepository) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if _, err := os.Stat(cfg.DBPath()); err != nil {
		return fmt.Errorf("agent database not found at %s: %w", cfg.DBPath(), err)
	}
	database, err := db.New(cfg.DBPath(), logging.Discard())
	if err != nil {
		return err
	}
	defer database.Close()
	return fn(store.NewRepository(database.Conn()))
}

// loadState reads the panel state from --state when given, otherwise from
// the agent database. The binary falls back to --binary, then to the config.
func (c *commandContext) loadState(cmd *cobra.Command) (form.State, error) {
	var st form.State
	path := ""
	if c.stateFlag != nil {
		path = strings.TrimSpace(*c.stateFlag)
	}

	if path != "" {
		data, err := readStateFile(cmd, path)
		if err != nil {
			return st, err
		}
		st, err = form.Decode(data)
		if err != nil {
			return st, fmt.Errorf("parse state %s: %w", path, err)
		}
	} else {
		err := c.withRepository(func(repo *store.SQLiteRepository) error {
			st = form.NewStore(repo, logging.Discard()).Load(cmd.Context())
			return nil
		})
		if err != nil {
			return st, err
		}
	}

	if strings.TrimSpace(st.Binary) == "" {
		st.Binary = c.defaultBinary()
	}
	return st, nil
}

func (c *commandContext) defaultBinary() string {
	if c.binaryFlag != nil && strings.TrimSpace(*c.binaryFlag) != "" {
		return strings.TrimSpace(*c.binaryFlag)
	}
	if cfg, err := c.ensureConfig(); err == nil {
		return cfg.Binary()
	}
	return ""
}

func readStateFile(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read state from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	return data, nil
}

func commandCtx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
