package config

import (
	"fmt"

	"github.com/melih-ucgun/warden/internal/core"
)

// Prepare renders template values and drops entries whose when: condition is
// false. Runs once, before validation, so every later stage sees final
// values only.
func Prepare(cfg *Config, ctx *core.RunContext) error {
	for k, v := range cfg.Vars {
		rendered, err := core.ExecuteTemplate(v, ctx)
		if err != nil {
			return fmt.Errorf("vars.%s: %w", k, err)
		}
		cfg.Vars[k] = rendered
		ctx.Vars[k] = rendered
	}

	kept := cfg.Connections[:0]
	for _, conn := range cfg.Connections {
		ok, err := keep(conn.When, "connection "+conn.Name, ctx)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := renderMap(conn.Fields, ctx); err != nil {
			return fmt.Errorf("connection %s: %w", conn.Name, err)
		}
		kept = append(kept, conn)
	}
	cfg.Connections = kept

	keptProjects := cfg.Projects[:0]
	for _, proj := range cfg.Projects {
		ok, err := keep(proj.When, "project "+proj.Name, ctx)
		if err != nil {
			return err
		}
		if ok {
			keptProjects = append(keptProjects, proj)
		}
	}
	cfg.Projects = keptProjects

	keptFolders := cfg.Folders[:0]
	for _, folder := range cfg.Folders {
		ok, err := keep(folder.When, "folder "+folder.Name, ctx)
		if err != nil {
			return err
		}
		if ok {
			keptFolders = append(keptFolders, folder)
		}
	}
	cfg.Folders = keptFolders

	if cfg.Auth != nil {
		if err := renderMap(cfg.Auth.Fields, ctx); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	return nil
}

func keep(when, what string, ctx *core.RunContext) (bool, error) {
	if when == "" {
		return true, nil
	}
	ok, err := core.EvaluateCondition(when, ctx)
	if err != nil {
		return false, fmt.Errorf("%s: %w", what, err)
	}
	if !ok {
		ctx.Logger.Debug(fmt.Sprintf("[%s] skipped, condition not met", what))
	}
	return ok, nil
}

// renderMap renders string values in place, recursing into nested maps and
// slices the way they come out of yaml.
func renderMap(fields map[string]any, ctx *core.RunContext) error {
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			rendered, err := core.ExecuteTemplate(val, ctx)
			if err != nil {
				return fmt.Errorf("field %q: %w", k, err)
			}
			fields[k] = rendered
		case map[string]any:
			if err := renderMap(val, ctx); err != nil {
				return err
			}
		case []any:
			for i, item := range val {
				if str, ok := item.(string); ok {
					rendered, err := core.ExecuteTemplate(str, ctx)
					if err != nil {
						return fmt.Errorf("field %q index %d: %w", k, i, err)
					}
					val[i] = rendered
				}
			}
		}
	}
	return nil
}
