package types

// OutputFormat names a container/codec profile for rendered captions.
type OutputFormat string

const (
	OutputFormatMP4  OutputFormat = "mp4"
	OutputFormatWebM OutputFormat = "webm"
)

// Valid reports whether f is a known output profile.
func (f OutputFormat) Valid() bool {
	return f == OutputFormatMP4 || f == OutputFormatWebM
}

// Extension returns the file extension (with dot) for the format.
func (f OutputFormat) Extension() string {
	return "." + string(f)
}
