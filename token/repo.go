package token

// Repo persists the single token record of the device session. Implementations must write and
// delete the record as one unit so a reader never sees a partial record.
type Repo interface {
	// Load returns the stored record, or nil when there is none
	Load() (*Record, error)
	Save(record *Record) error
	Delete() error
}
