package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chazu/jbridge/descriptor"
)

// handleParseCommand processes the `jbridge parse` subcommand.
// Usage:
//
//	jbridge parse '(IJ)V'              # method descriptor
//	jbridge parse '[Ljava/lang/String;' # field descriptor
//	jbridge parse 'java.util.Map[]'     # source notation
func handleParseCommand(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Error: parse requires at least one descriptor")
		return 2
	}
	status := 0
	for _, text := range args {
		if err := describeDescriptor(os.Stdout, text); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			status = 1
		}
	}
	return status
}

func describeDescriptor(w io.Writer, text string) error {
	p, err := descriptor.Parse(text)
	if err != nil {
		// Not descriptor text; try source notation before giving up.
		t, nameErr := descriptor.FromJavaName(text)
		if nameErr != nil || strings.HasPrefix(text, "(") {
			return err
		}
		p = &descriptor.Parsed{Field: &t}
	}

	if p.Method != nil {
		m := p.Method
		ret := "void"
		if m.Return != nil {
			ret = describeType(*m.Return)
		}
		fmt.Fprintf(w, "%s\n", m)
		fmt.Fprintf(w, "  java:    %s\n", m.JavaParams())
		fmt.Fprintf(w, "  arity:   %d\n", m.Arity())
		for i, param := range m.Params {
			fmt.Fprintf(w, "  param %d: %s\n", i, describeType(param))
		}
		fmt.Fprintf(w, "  returns: %s\n", ret)
		return nil
	}

	t := *p.Field
	fmt.Fprintf(w, "%s\n", t)
	fmt.Fprintf(w, "  java: %s\n", t.JavaName())
	fmt.Fprintf(w, "  kind: %s\n", describeType(t))
	return nil
}

func describeType(t descriptor.Type) string {
	switch {
	case t.IsArray():
		return fmt.Sprintf("%s (array, depth %d, of %s)", t, t.Depth(), t.Base().JavaName())
	case t.IsObject():
		return fmt.Sprintf("%s (object %s)", t, t.ClassName())
	default:
		return fmt.Sprintf("%s (%s)", t, t.Kind())
	}
}
