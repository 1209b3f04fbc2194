// Package manifest handles jbridge.toml configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/chazu/jbridge/bridge"
	"github.com/chazu/jbridge/jni"
)

// FileName is the configuration file name looked up by FindAndLoad.
const FileName = "jbridge.toml"

// Manifest represents a jbridge.toml configuration.
type Manifest struct {
	JVM       JVMConfig           `toml:"jvm"`
	Cache     CacheConfig         `toml:"cache"`
	Log       LogConfig           `toml:"log"`
	Hierarchy map[string][]string `toml:"hierarchy"`

	// Dir is the directory containing the jbridge.toml file (set at load time).
	Dir string `toml:"-"`
}

// JVMConfig configures the embedded JVM.
type JVMConfig struct {
	Library   string   `toml:"library"`
	Classpath []string `toml:"classpath"`
	Options   []string `toml:"options"`
}

// CacheConfig configures the specificity cache.
type CacheConfig struct {
	Snapshot string `toml:"snapshot"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no jbridge.toml exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.JVM.Library == "" {
		m.JVM.Library = jni.DefaultLibrary()
	}
}

// Load parses a jbridge.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	if m.Log.Verbosity < 0 {
		return nil, fmt.Errorf("%s: log verbosity must not be negative", path)
	}
	for class := range m.Hierarchy {
		if strings.Contains(class, ".") {
			return nil, fmt.Errorf("%s: hierarchy class %q must use internal names (java/lang/String)", path, class)
		}
	}

	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find a jbridge.toml file, then
// loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// resolve makes p absolute relative to the manifest directory.
func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// ClasspathEntries returns absolute paths for the configured classpath.
func (m *Manifest) ClasspathEntries() []string {
	var paths []string
	for _, c := range m.JVM.Classpath {
		paths = append(paths, m.resolve(c))
	}
	return paths
}

// VMOptions returns the options passed to JNI_CreateJavaVM: the classpath
// as -Djava.class.path followed by the configured options.
func (m *Manifest) VMOptions() []string {
	var opts []string
	if cp := m.ClasspathEntries(); len(cp) > 0 {
		opts = append(opts, "-Djava.class.path="+strings.Join(cp, string(os.PathListSeparator)))
	}
	return append(opts, m.JVM.Options...)
}

// SnapshotPath returns the absolute cache snapshot path, or "" if snapshots
// are disabled.
func (m *Manifest) SnapshotPath() string {
	return m.resolve(m.Cache.Snapshot)
}

// LogPath returns the log file path, or nil to log to stderr.
func (m *Manifest) LogPath() *string {
	if m.Log.File == "" {
		return nil
	}
	p := m.resolve(m.Log.File)
	return &p
}

// NewHierarchy returns a class hierarchy seeded with the [hierarchy] table.
func (m *Manifest) NewHierarchy() *bridge.Hierarchy {
	h := bridge.NewHierarchy()
	classes := make([]string, 0, len(m.Hierarchy))
	for class := range m.Hierarchy {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	for _, class := range classes {
		h.Declare(class, m.Hierarchy[class]...)
	}
	return h
}
