package bridge

import (
	"strings"
	"sync"

	"github.com/chazu/jbridge/jni"
)

// Hierarchy answers "can an instance of from be used as a to" for class
// names in internal form (java/lang/String, [I). Answers come from, in
// order: identity, a static graph declared up front, a memo of earlier VM
// answers, then FindClass and IsAssignableFrom on a bound Env.
//
// A Hierarchy is shared across goroutines. Each goroutine binds its own Env
// with Bind.
type Hierarchy struct {
	mu     sync.RWMutex
	static map[string]map[string]bool
	memo   map[[2]string]bool
}

// NewHierarchy returns an empty hierarchy.
func NewHierarchy() *Hierarchy {
	return &Hierarchy{
		static: make(map[string]map[string]bool),
		memo:   make(map[[2]string]bool),
	}
}

// Declare records that class is assignable to each of supers. Declarations
// are not transitive; list every supertype that matters.
func (h *Hierarchy) Declare(class string, supers ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.static[class]
	if set == nil {
		set = make(map[string]bool)
		h.static[class] = set
	}
	for _, s := range supers {
		set[s] = true
	}
}

// IsAssignable answers from the static graph and memo only.
func (h *Hierarchy) IsAssignable(from, to string) bool {
	return h.Bind(nil).IsAssignable(from, to)
}

// Bind returns a view that falls back to env for unknown pairs. A nil env
// gives an offline view.
func (h *Hierarchy) Bind(env jni.Env) *Bound {
	return &Bound{h: h, env: env}
}

// Len returns the number of memoized VM answers.
func (h *Hierarchy) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.memo)
}

func (h *Hierarchy) known(from, to string) (answer, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if set, declared := h.static[from]; declared && set[to] {
		return true, true
	}
	answer, ok = h.memo[[2]string{from, to}]
	return answer, ok
}

// Bound is a Hierarchy bound to one goroutine's Env.
type Bound struct {
	h         *Hierarchy
	env       jni.Env
	fallbacks int
}

// Fallbacks counts the answers that came from the static rules because the
// bound Env could not be asked: a class failed to load or an exception was
// already pending. Such answers can differ from the VM's.
func (b *Bound) Fallbacks() int { return b.fallbacks }

func (b *Bound) IsAssignable(from, to string) bool {
	if from == to {
		return true
	}
	if answer, ok := b.h.known(from, to); ok {
		return answer
	}
	if b.env == nil {
		return staticAssignable(b.h, from, to)
	}
	if b.env.ExceptionCheck() {
		b.fallbacks++
		return staticAssignable(b.h, from, to)
	}

	answer, ok := b.ask(from, to)
	if !ok {
		b.fallbacks++
		return staticAssignable(b.h, from, to)
	}
	b.h.mu.Lock()
	b.h.memo[[2]string{from, to}] = answer
	b.h.mu.Unlock()
	return answer
}

// ask queries the VM. ok is false when either class could not be loaded;
// the resulting exception is cleared.
func (b *Bound) ask(from, to string) (answer, ok bool) {
	env := b.env
	scope := jni.NewScope(env)
	defer scope.Close()

	sub := scope.Track(env.FindClass(from))
	if sub.IsNull() {
		env.ExceptionClear()
		log.Debugf("hierarchy: cannot load %s", from)
		return false, false
	}
	sup := scope.Track(env.FindClass(to))
	if sup.IsNull() {
		env.ExceptionClear()
		log.Debugf("hierarchy: cannot load %s", to)
		return false, false
	}
	return env.IsAssignableFrom(sub, sup), true
}

// staticAssignable applies the rules that hold for every class graph:
// Object is a supertype of everything, and arrays follow Java's array
// subtyping.
func staticAssignable(h *Hierarchy, from, to string) bool {
	if from == to {
		return true
	}
	if to == "java/lang/Object" {
		return true
	}
	if strings.HasPrefix(from, "[") {
		if to == "java/lang/Cloneable" || to == "java/io/Serializable" {
			return true
		}
		if !strings.HasPrefix(to, "[") {
			return false
		}
		fe, te := elemClass(from[1:]), elemClass(to[1:])
		if fe == "" || te == "" {
			return from == to
		}
		return h.Bind(nil).IsAssignable(fe, te)
	}
	return false
}

// elemClass turns the descriptor text of an array element into the name
// IsAssignable uses. It returns "" for primitive elements.
func elemClass(desc string) string {
	switch {
	case strings.HasPrefix(desc, "["):
		return desc
	case strings.HasPrefix(desc, "L") && strings.HasSuffix(desc, ";"):
		return desc[1 : len(desc)-1]
	}
	return ""
}
