package state

// Step identifies what kind of follow-up message a chat owes us.
type Step string

const (
	// StepAwaitingOTP means the next plain message from the chat is treated
	// as the one-time password for the pending account.
	StepAwaitingOTP Step = "awaiting_otp"
)

// Pending describes the operation a chat has in flight.
type Pending struct {
	Step    Step
	Service string
	Phone   string
}

// Manager owns the chat -> pending-operation table. At most one pending
// operation exists per chat; setting a new one replaces the old.
type Manager interface {
	// Set records a pending operation for the chat, overwriting any prior one.
	Set(chatID int64, p Pending)
	// Peek returns the pending operation without consuming it.
	Peek(chatID int64) (Pending, bool)
	// Take atomically removes and returns the pending operation. The
	// read-and-clear is a single critical section so two concurrent
	// messages can never both consume the same pending step.
	Take(chatID int64) (Pending, bool)
	// Clear drops any pending operation for the chat.
	Clear(chatID int64)
	// InProgress reports whether the chat has a pending operation.
	InProgress(chatID int64) bool
}
