package mapk

// Validatable is implemented by destination types that check themselves once
// they are built. Mappers created with MapperOpts.Validate call Validate on
// every value they produce and return the zero value when it fails.
type Validatable interface {
	// Validate checks the fields of the struct and returns an error
	// if any of the fields are invalid.
	//
	// It may be implemented on the value or on the pointer receiver.
	Validate() error
}
