package errors

// Category classifies errors by how the daemon must react to them.
type Category string

const (
	// CategoryFatal indicates failures the daemon cannot operate past.
	// Examples: worker thread creation failure at startup.
	CategoryFatal Category = "fatal"

	// CategoryRecoverable indicates failures recovered locally.
	// Examples: a dropped tick, a store error retried next iteration.
	CategoryRecoverable Category = "recoverable"

	// CategoryTerminal indicates a resource that will never produce again.
	// Examples: waiting on a closed event queue.
	CategoryTerminal Category = "terminal"
)

// String returns the string representation of the category.
func (c Category) String() string {
	return string(c)
}

// Fatal returns true if errors in this category must terminate the process.
func (c Category) Fatal() bool {
	return c == CategoryFatal
}

// Code identifies specific failure types within categories.
type Code string

// Error codes for the daemon's failure scenarios.
const (
	// Fatal
	CodeWorkerStart  Code = "WORKER_START"  // background worker could not be started
	CodeListenerBind Code = "LISTENER_BIND" // control socket could not be bound

	// Recoverable
	CodeTickDropped      Code = "TICK_DROPPED"      // timer tick could not be enqueued
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE" // store call failed this iteration
	CodeSignalUnknown    Code = "SIGNAL_UNKNOWN"    // unrecognized signal delivered
	CodeCommandUnknown   Code = "COMMAND_UNKNOWN"   // appctl command not registered
	CodeInvalidInput     Code = "INVALID_INPUT"     // malformed configuration or request

	// Terminal
	CodeQueueClosed    Code = "QUEUE_CLOSED"    // event queue closed while waiting
	CodeAlreadyStarted Code = "ALREADY_STARTED" // component started twice
	CodeClosed         Code = "CLOSED"          // component used after Close

	// Internal
	CodeInternal Code = "INTERNAL" // unexpected internal error
)

// codeCategories maps each code to its default category.
var codeCategories = map[Code]Category{
	CodeWorkerStart:      CategoryFatal,
	CodeListenerBind:     CategoryFatal,
	CodeTickDropped:      CategoryRecoverable,
	CodeStoreUnavailable: CategoryRecoverable,
	CodeSignalUnknown:    CategoryRecoverable,
	CodeCommandUnknown:   CategoryRecoverable,
	CodeInvalidInput:     CategoryRecoverable,
	CodeQueueClosed:      CategoryTerminal,
	CodeAlreadyStarted:   CategoryTerminal,
	CodeClosed:           CategoryTerminal,
	CodeInternal:         CategoryFatal,
}

// CategoryOf returns the category for a code.
// Unknown codes are treated as fatal.
func CategoryOf(code Code) Category {
	if cat, ok := codeCategories[code]; ok {
		return cat
	}
	return CategoryFatal
}
