// Package record decides which delivered payloads are persisted.
//
// The gate is syntactic: a payload is a record when its first byte opens a
// JSON object. Feed control notices that also start with '{' (rate-limit
// notices, disconnect messages) cannot be told apart here and are persisted
// as-is; consumers filter them by shape.
package record

// Kind tags a delivered payload.
type Kind int

const (
	// ControlNoise is anything that is not persisted: keep-alive blank lines,
	// stray control bytes.
	ControlNoise Kind = iota
	// DataRecord is a payload that looks like a JSON object.
	DataRecord
)

// String returns the kind name.
func (k Kind) String() string {
	if k == DataRecord {
		return "data"
	}
	return "control"
}

// Classify tags payload as a data record or control noise.
func Classify(payload []byte) Kind {
	if len(payload) > 0 && payload[0] == '{' {
		return DataRecord
	}
	return ControlNoise
}

// Accepts reports whether payload should be written to the output file.
func Accepts(payload []byte) bool {
	return Classify(payload) == DataRecord
}
