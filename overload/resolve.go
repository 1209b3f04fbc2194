package overload

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/jbridge/host"
	"github.com/chazu/jbridge/marshal"
)

var (
	// ErrNoApplicable is matched by every NoApplicableError.
	ErrNoApplicable = errors.New("no applicable overload")
	// ErrAmbiguous is matched by every AmbiguousError.
	ErrAmbiguous = errors.New("ambiguous overload")
)

// NoApplicableError reports that no candidate accepts the arguments.
type NoApplicableError struct {
	Args       []host.Value
	Candidates []Candidate
}

func (e *NoApplicableError) Error() string {
	return fmt.Sprintf("overload: no overload among %s accepts %s", signatures(e.Candidates), describe(e.Args))
}

func (e *NoApplicableError) Unwrap() error { return ErrNoApplicable }

// AmbiguousError reports several applicable candidates none of which is more
// specific than all the others.
type AmbiguousError struct {
	Args       []host.Value
	Candidates []Candidate // the applicable ones
	Varargs    bool
}

func (e *AmbiguousError) Error() string {
	phase := ""
	if e.Varargs {
		phase = " with varargs"
	}
	return fmt.Sprintf("overload: call with %s is ambiguous%s between %s", describe(e.Args), phase, signatures(e.Candidates))
}

func (e *AmbiguousError) Unwrap() error { return ErrAmbiguous }

func signatures(cs []Candidate) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.Signature.String()
	}
	return strings.Join(parts, ", ")
}

func describe(args []host.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.Kind.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Choice is the outcome of Resolve.
type Choice struct {
	Candidate Candidate
	Varargs   bool // arguments must be packed into the trailing array
}

// Resolver resolves overload sets with a shared specificity cache.
type Resolver struct {
	cache *Cache
}

// NewResolver returns a resolver using cache. A nil cache gets a private one.
func NewResolver(cache *Cache) *Resolver {
	if cache == nil {
		cache = NewCache()
	}
	return &Resolver{cache: cache}
}

// Cache returns the resolver's specificity cache.
func (r *Resolver) Cache() *Cache { return r.cache }

// Resolve picks the candidate to call with args. Candidates are first tried
// with fixed arity, then, if none applies, varargs candidates are tried with
// trailing arguments collected. h answers class assignability and must be
// usable from the calling goroutine.
func (r *Resolver) Resolve(h marshal.Hierarchy, candidates []Candidate, args []host.Value) (Choice, error) {
	kinds := host.Kinds(args)
	for _, varargs := range []bool{false, true} {
		var applicable []Candidate
		for _, c := range candidates {
			if varargs && !c.Signature.Varargs {
				continue
			}
			if IsApplicable(h, c.Signature, args, varargs) {
				applicable = append(applicable, c)
			}
		}

		switch len(applicable) {
		case 0:
			continue
		case 1:
			log.Debugf("resolved %s to %s", describe(args), applicable[0].Signature)
			return Choice{Candidate: applicable[0], Varargs: varargs}, nil
		}

		if best, ok := r.mostSpecific(h, applicable, kinds, varargs); ok {
			log.Debugf("resolved %s to %s among %d", describe(args), best.Signature, len(applicable))
			return Choice{Candidate: best, Varargs: varargs}, nil
		}
		return Choice{}, &AmbiguousError{Args: args, Candidates: applicable, Varargs: varargs}
	}
	return Choice{}, &NoApplicableError{Args: args, Candidates: candidates}
}

// mostSpecific returns the single candidate better than every other one.
func (r *Resolver) mostSpecific(h marshal.Hierarchy, cs []Candidate, kinds []host.Kind, varargs bool) (Candidate, bool) {
	var winner Candidate
	found := 0
	for i, c := range cs {
		best := true
		for j, d := range cs {
			if i != j && !r.IsBetter(h, c, d, kinds, varargs) {
				best = false
				break
			}
		}
		if best {
			winner = c
			found++
		}
	}
	return winner, found == 1
}

// fallbackCounter is implemented by hierarchies that can answer from
// static rules when the VM cannot be asked (*bridge.Bound).
type fallbackCounter interface {
	Fallbacks() int
}

// IsBetter is IsBetterOverload through the cache. Answers that needed a
// hierarchy fallback are returned but not cached.
func (r *Resolver) IsBetter(h marshal.Hierarchy, c, d Candidate, kinds []host.Kind, varargs bool) bool {
	key := NewKey(c.Signature, d.Signature, kinds, varargs)
	return r.cache.Lookup(key, func() (bool, bool) {
		fc, counts := h.(fallbackCounter)
		before := 0
		if counts {
			before = fc.Fallbacks()
		}
		better := IsBetterOverload(h, c.Signature, d.Signature, kinds, varargs)
		return better, !counts || fc.Fallbacks() == before
	})
}
