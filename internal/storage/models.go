package storage

// Point types stored in the collection. A content point holds the full element
// and has no vector; a summary point holds the summary vector and links back to
// its content point.
const (
	pointTypeContent = "content"
	pointTypeSummary = "summary"
)

// Payload fields.
const (
	fieldType      = "type"
	fieldSession   = "session"
	fieldKind      = "kind"
	fieldContent   = "content"
	fieldContentID = "content_id"
)

// vectorName is the named vector used by summary points.
const vectorName = "summary"

// DefaultCollection is the collection used when none is configured.
const DefaultCollection = "finchat"

// Config contains connection details for Qdrant.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}
