package errors

import (
	"errors"
	"io"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FaultKind
	}{
		{"nil", nil, FaultNone},
		{"transient", NewTransientRead("read body", io.ErrUnexpectedEOF), FaultTransientRead},
		{"transient without cause", NewTransientRead("read body", nil), FaultTransientRead},
		{"parameter changed", Wrap(ErrParameterSourceChanged, "deliver"), FaultParameterChanged},
		{"parse", NewParse("params.txt", "token 2", nil), FaultParse},
		{"status", NewUpstreamStatus(401, "unauthorized"), FaultUnclassified},
		{"line too long", NewLineTooLong(1024), FaultUnclassified},
		{"plain", errors.New("disk full"), FaultUnclassified},
		{"changed beats transient", Join(NewTransientRead("read", nil), ErrParameterSourceChanged), FaultParameterChanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFaultKind_Recoverable(t *testing.T) {
	recoverable := map[FaultKind]bool{
		FaultNone:             false,
		FaultTransientRead:    true,
		FaultParameterChanged: true,
		FaultParse:            false,
		FaultUnclassified:     false,
	}
	for kind, want := range recoverable {
		if got := kind.Recoverable(); got != want {
			t.Errorf("%v.Recoverable() = %v, want %v", kind, got, want)
		}
	}
}

func TestNewTransientRead_KeepsCause(t *testing.T) {
	err := NewTransientRead("read body", io.ErrUnexpectedEOF)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("cause should remain reachable through errors.Is")
	}
	if Classify(err) != FaultTransientRead {
		t.Error("expected transient read")
	}
}

func TestValidationErrors(t *testing.T) {
	v := NewValidationErrors()
	if v.Err() != nil {
		t.Fatal("empty collector should return nil")
	}

	v.AddMissing("credentials.consumer_key")
	v.AddField("stream.mode", "must be sample, location or keyword")

	err := v.Err()
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrMissingField) {
		t.Error("expected ErrMissingField in chain")
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Error("expected ErrInvalidConfig in chain")
	}
	if !IsValidation(err) {
		t.Error("expected IsValidation")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("wrapping nil must return nil")
	}

	err := Wrap(io.ErrUnexpectedEOF, "read stream")
	if err.Error() != "read stream: unexpected EOF" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("Wrap must keep the cause")
	}
}
