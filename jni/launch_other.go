//go:build !(darwin || linux)

package jni

// Launch is not available on this platform.
func Launch(library string, options []string) (*VM, error) {
	return nil, ErrUnsupported
}

// Destroy is a no-op on platforms without Launch.
func (vm *VM) Destroy() error { return ErrUnsupported }
