package wire

// Line terminator.
const CRLF = "\r\n"

// Broker greeting and replies.
const (
	Greeting         = "HELO SERVER"
	ReplyOK          = "OK"
	ReplyOKWithValue = "OK:"
	ReplyErrorPrefix = "ERROR:"
)

// Section delimiters.
const (
	StartConfig     = "START_CONFIG"
	EndConfig       = "END_CONFIG"
	StartMetadata   = "START_METADATA"
	EndMetadata     = "END_METADATA"
	StartMessage    = "START_MESSAGE"
	EndMessage      = "END_MESSAGE"
	StartGetMessage = "START_GET_MESSAGE"
	EndGetMessage   = "END_GET_MESSAGE"
)

// Commands available in any section.
const (
	RunQuit = "RUN QUIT"
)

// Parameter names accepted by SET.
const (
	ParamQueue            = "QUEUE"
	ParamRole             = "ROLE"
	ParamDeliverDate      = "DELIVER_DATE"
	ParamDeliverTimestamp = "DELIVER_TIMESTAMP"
)

// Role values for ParamRole.
const (
	RoleProducer = "PRODUCER"
	RoleConsumer = "CONSUMER"
)

// Limits
const (
	// DefaultMaxResponseSize bounds a single read. The protocol has no length
	// prefix, so this is a memory bound and not a framing delimiter.
	DefaultMaxResponseSize = 16 * 1024 * 1024

	// TextQuote wraps text bodies on the wire.
	TextQuote = '"'
)
