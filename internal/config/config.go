package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Connection is one desired database connection. Everything except the name
// and the when: guard is passed through to the backend as-is, so new backend
// fields never require a code change here.
type Connection struct {
	Name   string         `yaml:"name"`
	When   string         `yaml:"when,omitempty"`
	Fields map[string]any `yaml:",inline"`
}

// Model binds a LookML model to its project and allowed connections.
type Model struct {
	ModelName       string   `yaml:"model_name"`
	ConnectionNames []string `yaml:"connection_names"`
}

// Project is a desired project with its models. Only creation is managed;
// project settings are owned elsewhere.
type Project struct {
	Name   string  `yaml:"name"`
	When   string  `yaml:"when,omitempty"`
	Models []Model `yaml:"models"`
}

// PermissionSet is a desired named permission bundle.
type PermissionSet struct {
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

// ModelSet is a desired named model bundle.
type ModelSet struct {
	Name   string   `yaml:"name"`
	Models []string `yaml:"models"`
}

// Role references its sets by name. The names resolve to backend ids at
// apply time, after any same-pass set creation.
type Role struct {
	Name          string `yaml:"name"`
	PermissionSet string `yaml:"permission_set"`
	ModelSet      string `yaml:"model_set"`
}

// Roles groups the dependency triad from roles.yaml.
type Roles struct {
	PermissionSets []PermissionSet `yaml:"permission_sets"`
	ModelSets      []ModelSet      `yaml:"model_sets"`
	Roles          []Role          `yaml:"roles"`
}

// AccessRule grants one principal a permission on a folder. Exactly one of
// Group and User should be set; Permission defaults to view.
type AccessRule struct {
	Group      string `yaml:"group,omitempty"`
	User       string `yaml:"user,omitempty"`
	Permission string `yaml:"permission,omitempty"`
}

// Folder is a desired folder and its access list.
type Folder struct {
	Name   string       `yaml:"name"`
	Parent string       `yaml:"parent,omitempty"`
	When   string       `yaml:"when,omitempty"`
	Access []AccessRule `yaml:"access"`
}

// MirroredGroup mirrors an identity-provider group onto backend roles.
type MirroredGroup struct {
	Name  string   `yaml:"name"`
	Roles []string `yaml:"roles"`
}

// Auth is the singleton identity-provider configuration. Provider fields are
// kept as a raw map and translated to backend field names by the reconciler.
type Auth struct {
	Fields         map[string]any  `yaml:",inline"`
	MirroredGroups []MirroredGroup `yaml:"mirrored_groups,omitempty"`
}

// Config is the complete desired state for one run.
type Config struct {
	Vars        map[string]string `yaml:"vars,omitempty"`
	Connections []Connection      `yaml:"connections"`
	Projects    []Project         `yaml:"projects"`
	Roles       Roles             `yaml:"roles"`
	Folders     []Folder          `yaml:"folders"`
	Auth        *Auth             `yaml:"auth,omitempty"`
}

// Load reads the desired-state files from a config directory. Every file is
// optional; a missing file just means that kind has no desired entries.
func Load(dir string) (*Config, error) {
	cfg := &Config{Vars: map[string]string{}}

	type section struct {
		file string
		into any
	}
	sections := []section{
		{"vars.yaml", &struct {
			Vars map[string]string `yaml:"vars"`
		}{}},
		{"connections.yaml", &struct {
			Connections []Connection `yaml:"connections"`
		}{}},
		{"projects.yaml", &struct {
			Projects []Project `yaml:"projects"`
		}{}},
		{"roles.yaml", &cfg.Roles},
		{"folders.yaml", &struct {
			Folders []Folder `yaml:"folders"`
		}{}},
		{"auth.yaml", &Auth{}},
	}

	for _, s := range sections {
		path := filepath.Join(dir, s.file)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, s.into); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}

		switch v := s.into.(type) {
		case *struct {
			Vars map[string]string `yaml:"vars"`
		}:
			if v.Vars != nil {
				cfg.Vars = v.Vars
			}
		case *struct {
			Connections []Connection `yaml:"connections"`
		}:
			cfg.Connections = v.Connections
		case *struct {
			Projects []Project `yaml:"projects"`
		}:
			cfg.Projects = v.Projects
		case *struct {
			Folders []Folder `yaml:"folders"`
		}:
			cfg.Folders = v.Folders
		case *Auth:
			if len(v.Fields) > 0 || len(v.MirroredGroups) > 0 {
				cfg.Auth = v
			}
		}
	}

	return cfg, nil
}
