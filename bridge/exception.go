package bridge

import (
	"errors"
	"fmt"

	"github.com/chazu/jbridge/jni"
)

// MaxCauseDepth bounds how many throwables of a cause chain are rendered.
const MaxCauseDepth = 64

// CausedBy is the StackLines element placed before every cause.
const CausedBy = "Caused by:"

// ErrInternal is matched by every InternalError.
var ErrInternal = errors.New("internal bridge error")

// InternalError reports that the VM threw again while a pending exception
// was being described. It replaces the exception that was being reported.
type InternalError struct {
	Op        string // what the bridge was doing
	Secondary string // class of the second exception, if it could be named
	Err       error
}

func (e *InternalError) Error() string {
	msg := "bridge: internal error while " + e.Op
	if e.Secondary != "" {
		msg += ": " + e.Secondary + " thrown"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InternalError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInternal}
	}
	return []error{ErrInternal, e.Err}
}

// BridgedException is a JVM exception surfaced as a Go error.
type BridgedException struct {
	ExceptionRecord
}

func (e *BridgedException) Error() string {
	if e.Message == "" {
		return e.ClassName
	}
	return e.ClassName + ": " + e.Message
}

// Check drains a pending exception, if any. It returns nil when nothing is
// pending, a *BridgedException for a drained exception, and an
// *InternalError if draining itself failed.
func Check(env jni.Env) error {
	rec, err := DrainPendingException(env)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	return &BridgedException{ExceptionRecord: *rec}
}

// DrainPendingException clears the pending exception and describes it. It
// returns (nil, nil) when nothing is pending. If the VM throws again while
// the exception is described, the second exception is cleared and an
// *InternalError is returned instead of the record. Every reference
// obtained is released on every path.
func DrainPendingException(env jni.Env) (*ExceptionRecord, error) {
	if !env.ExceptionCheck() {
		return nil, nil
	}
	t := env.ExceptionOccurred()
	env.ExceptionClear()
	if t.IsNull() {
		return nil, nil
	}
	defer env.DeleteLocalRef(t)

	d := &drainer{env: env, scope: jni.NewScope(env)}
	defer d.scope.Close()

	rec, err := d.describe(t)
	if err != nil {
		log.Warningf("%s", err)
		return nil, err
	}
	return rec, nil
}

type drainer struct {
	env   jni.Env
	scope *jni.Scope

	getMessage    jni.MethodID
	getCause      jni.MethodID
	getStackTrace jni.MethodID
	toString      jni.MethodID
}

// fail builds the InternalError for op, clearing and naming any exception
// that is now pending.
func (d *drainer) fail(op string, err error) error {
	ie := &InternalError{Op: op, Err: err}
	if !d.env.ExceptionCheck() {
		return ie
	}
	secondary := d.env.ExceptionOccurred()
	d.env.ExceptionClear()
	if secondary.IsNull() {
		return ie
	}
	defer d.env.DeleteLocalRef(secondary)
	if name, nameErr := RuntimeClassName(d.env, secondary); nameErr == nil {
		ie.Secondary = name
	} else {
		d.env.ExceptionClear()
	}
	return ie
}

func (d *drainer) lookupMethods() error {
	env := d.env
	throwable := d.scope.Track(env.FindClass("java/lang/Throwable"))
	if throwable.IsNull() {
		return d.fail("loading java.lang.Throwable", nil)
	}
	object := d.scope.Track(env.FindClass("java/lang/Object"))
	if object.IsNull() {
		return d.fail("loading java.lang.Object", nil)
	}

	for _, m := range []struct {
		id        *jni.MethodID
		class     jni.Ref
		name, sig string
	}{
		{&d.getMessage, throwable, "getMessage", "()Ljava/lang/String;"},
		{&d.getCause, throwable, "getCause", "()Ljava/lang/Throwable;"},
		{&d.getStackTrace, throwable, "getStackTrace", "()[Ljava/lang/StackTraceElement;"},
		{&d.toString, object, "toString", "()Ljava/lang/String;"},
	} {
		*m.id = env.GetMethodID(m.class, m.name, m.sig)
		if *m.id == 0 {
			return d.fail("looking up "+m.name, nil)
		}
	}
	d.scope.Release(object)
	d.scope.Release(throwable)
	return nil
}

func (d *drainer) describe(t jni.Ref) (*ExceptionRecord, error) {
	if err := d.lookupMethods(); err != nil {
		return nil, err
	}

	message, err := d.callString(t, d.getMessage, "calling getMessage")
	if err != nil {
		return nil, err
	}
	className, err := RuntimeClassName(d.env, t)
	if err != nil {
		return nil, d.fail("resolving the exception class", err)
	}
	lines, err := d.stackLines(t)
	if err != nil {
		return nil, err
	}
	return &ExceptionRecord{ClassName: className, Message: message, StackLines: lines}, nil
}

// callString calls a String-returning method and reads the result. A null
// result reads as "".
func (d *drainer) callString(obj jni.Ref, m jni.MethodID, op string) (string, error) {
	r := d.scope.Track(jni.CallObject(d.env, obj, m))
	if d.env.ExceptionCheck() {
		return "", d.fail(op, nil)
	}
	if r.IsNull() {
		return "", nil
	}
	s := d.env.GetStringUTF(r)
	if d.env.ExceptionCheck() {
		return "", d.fail(op, nil)
	}
	d.scope.Release(r)
	return s, nil
}

// stackLines walks the cause chain starting at t.
func (d *drainer) stackLines(t jni.Ref) ([]string, error) {
	var lines []string
	seen := []jni.Ref{t}
	cur := t

	for depth := 0; ; depth++ {
		if depth > 0 {
			lines = append(lines, CausedBy)
		}
		s, err := d.callString(cur, d.toString, "calling toString")
		if err != nil {
			return nil, err
		}
		lines = append(lines, s)

		frames, err := d.frames(cur)
		if err != nil {
			return nil, err
		}
		lines = append(lines, frames...)

		cause := d.scope.Track(jni.CallObject(d.env, cur, d.getCause))
		if d.env.ExceptionCheck() {
			return nil, d.fail("calling getCause", nil)
		}
		if cause.IsNull() || d.seen(seen, cause) {
			break
		}
		if depth+1 >= MaxCauseDepth {
			log.Warningf("cause chain of %s truncated at %d", lines[0], MaxCauseDepth)
			break
		}
		seen = append(seen, cause)
		cur = cause
	}
	return lines, nil
}

func (d *drainer) seen(seen []jni.Ref, r jni.Ref) bool {
	for _, s := range seen {
		if d.env.IsSameObject(s, r) {
			return true
		}
	}
	return false
}

func (d *drainer) frames(t jni.Ref) ([]string, error) {
	env := d.env
	arr := d.scope.Track(jni.CallObject(env, t, d.getStackTrace))
	if env.ExceptionCheck() {
		return nil, d.fail("calling getStackTrace", nil)
	}
	if arr.IsNull() {
		return nil, nil
	}
	defer d.scope.Release(arr)

	n := env.GetArrayLength(arr)
	if env.ExceptionCheck() {
		return nil, d.fail("reading the stack trace length", nil)
	}
	frames := make([]string, 0, n)
	for i := 0; i < n; i++ {
		el := d.scope.Track(env.GetObjectArrayElement(arr, i))
		if env.ExceptionCheck() {
			return nil, d.fail(fmt.Sprintf("reading stack frame %d", i), nil)
		}
		if el.IsNull() {
			continue
		}
		s, err := d.callString(el, d.toString, "calling StackTraceElement.toString")
		if err != nil {
			return nil, err
		}
		d.scope.Release(el)
		frames = append(frames, s)
	}
	return frames, nil
}
