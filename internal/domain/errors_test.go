package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	base := errors.New("boom")

	if IsPermanent(base) {
		t.Fatal("unclassified errors must be treated as transient")
	}
	if !IsPermanent(Permanent(base)) {
		t.Fatal("Permanent() must classify the error as permanent")
	}
	if IsPermanent(Retryable(base)) {
		t.Fatal("Retryable() must classify the error as transient")
	}
}

func TestClassificationSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("call failed: %w", Permanent(errors.New("bad request")))
	if !IsPermanent(err) {
		t.Fatal("classification must survive %w wrapping")
	}
}

func TestClassifiedErrorUnwraps(t *testing.T) {
	base := errors.New("boom")
	if !errors.Is(Permanent(base), base) {
		t.Fatal("classified error must unwrap to the original")
	}
	if Retryable(nil) != nil {
		t.Fatal("classifying nil must return nil")
	}
}
