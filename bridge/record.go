package bridge

import (
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// ExceptionRecord describes a drained JVM exception. StackLines holds, for
// each throwable in the cause chain, its toString followed by its frames;
// every throwable after the first is preceded by a CausedBy element.
type ExceptionRecord struct {
	ClassName  string   `cbor:"1,keyasint"`
	Message    string   `cbor:"2,keyasint,omitempty"`
	StackLines []string `cbor:"3,keyasint,omitempty"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bridge: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// EncodeRecord serializes r to canonical CBOR.
func EncodeRecord(r *ExceptionRecord) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// DecodeRecord deserializes a record written by EncodeRecord.
func DecodeRecord(data []byte) (*ExceptionRecord, error) {
	var r ExceptionRecord
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("bridge: unmarshal exception record: %w", err)
	}
	return &r, nil
}

// StackTrace renders the record the way Throwable.printStackTrace does.
func (r *ExceptionRecord) StackTrace() string {
	var b strings.Builder
	header := true
	for _, line := range r.StackLines {
		switch {
		case line == CausedBy:
			b.WriteString("Caused by: ")
			header = true
			continue
		case header:
			header = false
		default:
			b.WriteString("\tat ")
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
