package txcmd

// TransactionLevel defines the database transaction isolation level.
type TransactionLevel int

// Transaction isolation levels from lowest to highest isolation.
const (
	TxLevelDefault    TransactionLevel = 0 // Default is TxReadCommitted
	TxReadUncommitted TransactionLevel = 1 // Lowest isolation level
	TxReadCommitted   TransactionLevel = 2 // Prevents dirty reads
	TxRepeatableRead  TransactionLevel = 3 // Prevents non-repeatable reads
	TxSerializable    TransactionLevel = 4 // Highest isolation level
)

// TransactionMode defines the database transaction access mode.
type TransactionMode int

// Transaction operation modes.
const (
	TxModeDefault TransactionMode = 0 // TxReadWrite
	TxReadOnly    TransactionMode = 1
	TxReadWrite   TransactionMode = 2
)

// TxOptions parameters of a physical transaction.
type TxOptions struct {
	// Level defines the transaction isolation level.
	Level TransactionLevel
	// Mode defines the transaction operation mode.
	Mode TransactionMode
	// Lock indicates if object locking is required.
	// This is an advisory option and the caller decides what to lock.
	// In most cases it means SELECT ... FOR UPDATE.
	Lock bool
}

// IsolationLevel returns the level with TxLevelDefault resolved to TxReadCommitted.
func (o TxOptions) IsolationLevel() TransactionLevel {
	if o.Level == TxLevelDefault {
		return TxReadCommitted
	}
	return o.Level
}

// AccessMode returns the mode with TxModeDefault resolved to TxReadWrite.
func (o TxOptions) AccessMode() TransactionMode {
	if o.Mode == TxModeDefault {
		return TxReadWrite
	}
	return o.Mode
}
