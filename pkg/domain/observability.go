package domain

// ErrorReporter is the error-tracking sink used at failure boundaries.
type ErrorReporter interface {
	ClearUser()
	CaptureException(err error)
}

type NoOpErrorReporter struct{}

func (NoOpErrorReporter) ClearUser() {}

func (NoOpErrorReporter) CaptureException(err error) {}
