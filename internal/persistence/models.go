package persistence

// Event is the normalized, stored representation of one calendar event.
type Event struct {
	// ID is assigned by the store on insert and is monotonic within one
	// refresh generation.
	ID int64
	// Start and End are seconds since epoch, UTC-normalized. They are nil
	// when the source component carried no usable timestamp.
	Start *int64
	End   *int64

	Summary     *string
	Location    *string
	Description *string

	// Raw holds the original VEVENT re-serialized as iCalendar text, kept
	// for lossless round-trip and debugging.
	Raw string
}
