package types

// Version is the canonical project version. The CLI and the stream
// protocol consumer share this version.
const Version = "0.4.0"
