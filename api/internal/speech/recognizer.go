package speech

// Config is handed to the platform recognizer for one utterance.
type Config struct {
	Locale         string
	Continuous     bool
	InterimResults bool
}

// Listener receives the outcome of one recognition. Exactly one of its
// methods is called, from any goroutine, never from inside Start or Abort.
type Listener interface {
	Final(transcript string)
	Failed(err error)
}

// Recognition is a running capture.
type Recognition interface {
	Abort()
}

// Recognizer is the platform speech capability.
type Recognizer interface {
	Start(cfg Config, l Listener) (Recognition, error)
}
