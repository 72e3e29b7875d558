package database

// ErrorKind identifies the class of a core failure.
type ErrorKind int

// Set of core failure kinds.
const (
	Parsing ErrorKind = iota + 1
	Serialization
	AccountNotFound
	InsufficientBalance
	Execution
)

var kindNames = map[ErrorKind]string{
	Parsing:             "parsing",
	Serialization:       "serialization",
	AccountNotFound:     "account not found",
	InsufficientBalance: "insufficient balance",
	Execution:           "execution",
}

// String implements the fmt.Stringer interface.
func (k ErrorKind) String() string {
	if name, exists := kindNames[k]; exists {
		return name
	}
	return "unknown"
}

// Set of errors that can be matched with errors.Is. Matching is done on the
// kind of the error, not the message.
var (
	ErrAccountNotFound     = &CoreError{Kind: AccountNotFound, Msg: "account not found"}
	ErrInsufficientBalance = &CoreError{Kind: InsufficientBalance, Msg: "insufficient balance"}
)

// CoreError is returned for parsing, serialization and state execution
// failures.
type CoreError struct {
	Kind ErrorKind
	Msg  string
}

// NewCoreError constructs a core error of the specified kind.
func NewCoreError(kind ErrorKind, msg string) *CoreError {
	return &CoreError{Kind: kind, Msg: msg}
}

// Error implements the error interface.
func (ce *CoreError) Error() string {
	return ce.Msg
}

// Is reports whether the target is a core error of the same kind.
func (ce *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	if !ok {
		return false
	}
	return t.Kind == ce.Kind
}
