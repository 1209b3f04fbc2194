package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/chazu/jbridge/descriptor"
	"github.com/chazu/jbridge/dispatch"
	"github.com/chazu/jbridge/host"
	"github.com/chazu/jbridge/manifest"
	"github.com/chazu/jbridge/overload"
)

// handleResolveCommand processes the `jbridge resolve` subcommand. It needs
// no JVM: class relationships come from the [hierarchy] table.
// Usage:
//
//	jbridge resolve -sig '(I)V' -sig '(J)V' 5
//	jbridge resolve -sig '(Ljava/lang/String;[Ljava/lang/Object;)V...' '"%s"' 1 2
func handleResolveCommand(args []string, m *manifest.Manifest) int {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	var sigs sigList
	fs.Var(&sigs, "sig", "Candidate method descriptor (repeatable; append ... for varargs)")
	stats := fs.Bool("stats", false, "Print specificity cache statistics")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	method, err := dispatch.NewMethod("jbridge", "resolve", true, sigs...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	values, err := host.ParseAll(fs.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	cache, save := openCache(m)
	defer save()
	caller := dispatch.NewCaller(overload.NewResolver(cache), m.NewHierarchy())

	sig, varargs, err := caller.Resolve(nil, method, values)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	printChoice(os.Stdout, sig, varargs)
	if *stats {
		s := cache.Stats()
		fmt.Printf("cache: %d entries, %d hits, %d misses (%.0f%% hit rate)\n",
			s.Entries, s.Hits, s.Misses, s.HitRate())
	}
	return 0
}

func printChoice(w io.Writer, sig *descriptor.Method, varargs bool) {
	fmt.Fprintf(w, "%s %s", sig, sig.JavaParams())
	if varargs {
		fmt.Fprint(w, " (varargs expansion)")
	}
	fmt.Fprintln(w)
}
