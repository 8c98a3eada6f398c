package tracing

// Span attribute keys.
const (
	AttrCommandID          = "cli.command.id"
	AttrCommandArgs        = "cli.command.args"
	AttrCommandDescription = "cli.command.description"
	AttrCommandMode        = "cli.command.mode" // "server" or "stream"
	AttrQueueDepth         = "cli.queue.depth"
	AttrExitCode           = "process.exit_code"
	AttrEventCount         = "cli.stream.events"
)

// Command modes.
const (
	ModeServer = "server"
	ModeStream = "stream"
)

// SpanPrefixCommand prefixes every command span; the first command token follows.
const SpanPrefixCommand = "cli.command."

// Event names for span events.
const (
	EventQueued         = "command.queued"
	EventStarted        = "command.started"
	EventPromptAnswered = "prompt.answered"
	EventRestart        = "server.restart"
	EventCancelled      = "command.cancelled"
)
