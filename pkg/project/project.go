package project

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/slinkylib/slinky/pkg/slinky"
)

// ConfigFile is the name of the project configuration file
const ConfigFile = "project.yml"

// ScriptFile is the name of the optional task script
const ScriptFile = "tasks.star"

// markers are the files that identify a project root
var markers = []string{ConfigFile, ScriptFile, "rakefile.rb", "Rakefile"}

// TaskSettings adjusts a builtin task
type TaskSettings struct {
	Inputs  []string          `yaml:"inputs"`
	Outputs []string          `yaml:"outputs"`
	Env     map[string]string `yaml:"env"`
}

// Docs configures the documentation generator
type Docs struct {
	Generator string `yaml:"generator"`
	Config    string `yaml:"config"`
}

// Project describes a native library project
type Project struct {
	// Root is the absolute project directory. It's not read from the config file.
	Root string `yaml:"-"`

	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	// Header is the public header installed next to the library
	Header    string `yaml:"header"`
	BuildRoot string `yaml:"build_root"`
	// Delegate is the external build tool which compiles and tests the library
	Delegate string `yaml:"delegate"`
	// Prefix is the install prefix. $HOME and other variables are expanded when the project is used.
	Prefix  string `yaml:"prefix"`
	Docs    Docs   `yaml:"docs"`
	EnvFile string `yaml:"env_file"`
	Script  string `yaml:"script"`
	// Compression of the package archive, xz or br
	Compression string                  `yaml:"compression"`
	Tasks       map[string]TaskSettings `yaml:"tasks"`
}

// Default returns the settings used when a project has no project.yml
func Default(root string) *Project {
	return &Project{
		Root:      root,
		Name:      "slinky",
		Version:   slinky.Version,
		Header:    "src/slinky.h",
		BuildRoot: "build",
		Delegate:  "ceedling",
		Prefix:    "$HOME/usr",
		Docs: Docs{
			Generator: "doxygen",
			Config:    ".doxygen",
		},
		EnvFile:     ".env",
		Script:      ScriptFile,
		Compression: "xz",
		Tasks:       map[string]TaskSettings{},
	}
}

// Find walks up from dir to the closest directory containing a project marker. If there is
// none, dir itself is returned.
func Find(dir string) (string, error) {
	start, err := filepath.Abs(dir)
	if err != nil {
		return "", eris.Wrapf(err, "failed to resolve %s", dir)
	}

	current := start
	for {
		for _, marker := range markers {
			info, err := os.Stat(filepath.Join(current, marker))
			if err == nil && !info.IsDir() {
				return current, nil
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			return start, nil
		}
		current = parent
	}
}

// Load reads the project configuration from root. If the config file doesn't exist, the
// defaults are used.
func Load(root, configFile string) (*Project, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to resolve %s", root)
	}

	if configFile == "" {
		configFile = ConfigFile
	}
	if !filepath.IsAbs(configFile) {
		configFile = filepath.Join(root, configFile)
	}

	p := Default(root)
	data, err := os.ReadFile(configFile)
	if err != nil {
		if !eris.Is(err, os.ErrNotExist) {
			return nil, eris.Wrapf(err, "failed to read %s", configFile)
		}
	} else {
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)

		// An empty file decodes to io.EOF and keeps the defaults
		if err = decoder.Decode(p); err != nil && len(bytes.TrimSpace(data)) > 0 {
			return nil, eris.Wrapf(err, "failed to parse %s", configFile)
		}
		p.Root = root
	}

	if err = p.Validate(); err != nil {
		return nil, eris.Wrapf(err, "invalid project configuration in %s", configFile)
	}
	return p, nil
}

// Validate checks the required fields and the version format
func (p *Project) Validate() error {
	if p.Name == "" {
		return eris.New("name is required")
	}

	if p.Delegate == "" {
		return eris.New("delegate is required")
	}

	if _, err := p.SemVer(); err != nil {
		return err
	}

	switch p.Compression {
	case "xz", "br":
	default:
		return eris.Errorf("compression must be xz or br, not %q", p.Compression)
	}

	if p.Tasks == nil {
		p.Tasks = map[string]TaskSettings{}
	}
	return nil
}

// SemVer parses the project version
func (p *Project) SemVer() (*semver.Version, error) {
	version, err := semver.StrictNewVersion(p.Version)
	if err != nil {
		return nil, eris.Wrapf(err, "version %q is not a valid semantic version", p.Version)
	}
	return version, nil
}

// Path resolves a project relative path
func (p *Project) Path(parts ...string) string {
	if len(parts) > 0 && filepath.IsAbs(parts[0]) {
		return filepath.Join(parts...)
	}
	return filepath.Join(append([]string{p.Root}, parts...)...)
}

// ArtifactName returns the versioned file name of the shared library, e.g. libslinky.so.0.0.1
func (p *Project) ArtifactName() string {
	return slinky.New(0).FormatQuick("lib%s.so.%s", p.Name, p.Version).String()
}

// Soname returns the library name including only the major version, e.g. libslinky.so.0
func (p *Project) Soname() string {
	version, err := p.SemVer()
	if err != nil {
		return ""
	}
	return slinky.New(0).FormatQuick("lib%s.so.%U", p.Name, version.Major()).String()
}

// ReleaseDir is the directory where the delegate puts release builds
func (p *Project) ReleaseDir() string {
	return p.Path(p.BuildRoot, "release")
}

// StateDir holds the files slinky keeps between runs, like the install manifest
func (p *Project) StateDir() string {
	return p.Path(p.BuildRoot, ".slinky")
}

// Artifact is the path of the release build of the shared library
func (p *Project) Artifact() string {
	return filepath.Join(p.ReleaseDir(), p.ArtifactName())
}

// ArchiveName returns the file name of the source distribution written by the package task
func (p *Project) ArchiveName() string {
	return slinky.New(0).FormatQuick("%s-%s.tar.%s", p.Name, p.Version, p.Compression).String()
}
