package core

// Logger logs messages. args may carry an error, a map[string]interface{} of extras and the acting Identity.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Actor is the authenticated caller, as asserted by the identity provider.
type Actor struct {
	ID      string
	Email   string
	IsAdmin bool
}
