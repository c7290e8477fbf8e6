package fetch

import "fmt"

// Kind classifies why a fetch (or the subsequent write) failed. Kinds are
// the histogram keys of a batch run.
type Kind string

const (
	KindTimeout         Kind = "timeout"
	KindConnectionError Kind = "connection_error"
	KindHTTPError       Kind = "http_error"
	KindChallengePage   Kind = "challenge_page"
	KindInvalidContent  Kind = "invalid_content"
	KindSaveError       Kind = "save_error"
	KindUnknown         Kind = "unknown"
)

// Failure is one classified fetch failure. Status is set only for
// KindHTTPError.
type Failure struct {
	Kind   Kind
	Status int
	Detail string
}

func (f *Failure) Error() string {
	if f.Kind == KindHTTPError {
		return fmt.Sprintf("%s (status %d): %s", f.Kind, f.Status, f.Detail)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

// Outcome is the tagged result of resolving one descriptor: either manifest
// text with the URL it was finally served from, or a classified failure.
// It never carries both.
type Outcome struct {
	Manifest string
	FinalURL string
	Failure  *Failure
}

// OK reports whether the outcome carries manifest text.
func (o Outcome) OK() bool {
	return o.Failure == nil
}

func success(manifest, finalURL string) Outcome {
	return Outcome{Manifest: manifest, FinalURL: finalURL}
}

func failure(kind Kind, detail string) Outcome {
	return Outcome{Failure: &Failure{Kind: kind, Detail: detail}}
}

func httpFailure(status int, detail string) Outcome {
	return Outcome{Failure: &Failure{Kind: KindHTTPError, Status: status, Detail: detail}}
}
