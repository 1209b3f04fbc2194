package jni

// Scope owns a set of local references and releases each of them exactly
// once. The usual pattern is
//
//	scope := jni.NewScope(env)
//	defer scope.Close()
//	cls := scope.Track(env.GetObjectClass(obj))
//
// so every exit path, including error returns, deletes what was obtained.
type Scope struct {
	env  Env
	refs []Ref
}

// NewScope returns an empty scope bound to env.
func NewScope(env Env) *Scope {
	return &Scope{env: env}
}

// Track takes ownership of r and returns it. Null references are ignored.
func (s *Scope) Track(r Ref) Ref {
	if !r.IsNull() {
		s.refs = append(s.refs, r)
	}
	return r
}

// Release deletes r now instead of at Close. It is a no-op if r is not
// owned by the scope.
func (s *Scope) Release(r Ref) {
	if s.forget(r) {
		s.env.DeleteLocalRef(r)
	}
}

// Detach gives up ownership of r without deleting it. The caller becomes
// responsible for releasing it.
func (s *Scope) Detach(r Ref) Ref {
	s.forget(r)
	return r
}

// Len returns the number of references the scope still owns.
func (s *Scope) Len() int { return len(s.refs) }

// Close deletes every owned reference in reverse acquisition order. It is
// safe to call more than once.
func (s *Scope) Close() {
	for i := len(s.refs) - 1; i >= 0; i-- {
		s.env.DeleteLocalRef(s.refs[i])
	}
	s.refs = s.refs[:0]
}

func (s *Scope) forget(r Ref) bool {
	for i := len(s.refs) - 1; i >= 0; i-- {
		if s.refs[i] == r {
			s.refs = append(s.refs[:i], s.refs[i+1:]...)
			return true
		}
	}
	return false
}
