// jbridge CLI - inspect descriptors, resolve overloads and call into a JVM
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/jbridge/manifest"
	"github.com/chazu/jbridge/overload"
)

func main() {
	verbose := flag.Int("v", -1, "Log verbosity (overrides [log] verbosity in jbridge.toml)")
	dir := flag.String("C", ".", "Directory to search for jbridge.toml")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: jbridge [options] <command> [arguments]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  parse <descriptor|java type>...   Show the structure of descriptors\n")
		fmt.Fprintf(os.Stderr, "  resolve -sig <desc>... [args]     Pick the overload args select (offline)\n")
		fmt.Fprintf(os.Stderr, "  call -class C -method M -sig <desc>... [args]\n")
		fmt.Fprintf(os.Stderr, "                                    Launch a JVM and call a method\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nArguments are literals: 42, 1.5, true, null, \"text\", b\"bytes\", [1, 2].\n")
		fmt.Fprintf(os.Stderr, "A signature ending in ... is varargs.\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  jbridge parse '(ILjava/lang/String;[J)V' 'java.lang.String[]'\n")
		fmt.Fprintf(os.Stderr, "  jbridge resolve -sig '(I)V' -sig '(J)V' 5\n")
		fmt.Fprintf(os.Stderr, "  jbridge call -class java/lang/Math -method max -static -sig '(II)I' -sig '(JJ)J' 3 4\n")
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	m, err := manifest.FindAndLoad(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading manifest: %v\n", err)
		os.Exit(1)
	}
	if m == nil {
		m = manifest.Default(*dir)
	}
	verbosity := m.Log.Verbosity
	if *verbose >= 0 {
		verbosity = *verbose
	}
	commonlog.Configure(verbosity, m.LogPath())

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "parse":
		os.Exit(handleParseCommand(rest))
	case "resolve":
		os.Exit(handleResolveCommand(rest, m))
	case "call":
		os.Exit(handleCallCommand(rest, m))
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		flag.Usage()
		os.Exit(2)
	}
}

// sigList collects repeated -sig flags.
type sigList []string

func (s *sigList) String() string { return strings.Join(*s, " ") }

func (s *sigList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// openCache returns the specificity cache, restored from the manifest's
// snapshot if one is configured, and a function that writes it back.
func openCache(m *manifest.Manifest) (*overload.Cache, func()) {
	cache := overload.NewCache()
	path := m.SnapshotPath()
	if path == "" {
		return cache, func() {}
	}
	if err := cache.Load(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: ignoring cache snapshot: %v\n", err)
		cache = overload.NewCache()
	}
	return cache, func() {
		if err := cache.Save(path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cannot save cache snapshot: %v\n", err)
		}
	}
}
