package cli

import "time"

// StringFlag is a definition of a command flag expected to be parsed as a
// string.
//
// - implements cli.Flag
type StringFlag struct {
	Name     string
	Usage    string
	Required bool
	Value    string
}

// Key implements cli.Flag. It returns the name of the flag.
func (flag StringFlag) Key() string {
	return flag.Name
}

// StringSliceFlag is a definition of a command flag expected to be parsed as a
// slice of strings.
//
// - implements cli.Flag
type StringSliceFlag struct {
	Name     string
	Usage    string
	Required bool
	Value    []string
}

// Key implements cli.Flag. It returns the name of the flag.
func (flag StringSliceFlag) Key() string {
	return flag.Name
}

// DurationFlag is a definition of a command flag expected to be parsed as a
// duration.
//
// - implements cli.Flag
type DurationFlag struct {
	Name     string
	Usage    string
	Required bool
	Value    time.Duration
}

// Key implements cli.Flag. It returns the name of the flag.
func (flag DurationFlag) Key() string {
	return flag.Name
}

// IntFlag is a definition of a command flag expected to be parsed as a integer.
//
// - implements cli.Flag
type IntFlag struct {
	Name     string
	Usage    string
	Required bool
	Value    int
}

// Key implements cli.Flag. It returns the name of the flag.
func (flag IntFlag) Key() string {
	return flag.Name
}

// BoolFlag is a definition of a command flag expected to be parsed as a
// boolean.
//
// - implements cli.Flag
type BoolFlag struct {
	Name     string
	Usage    string
	Required bool
	Value    bool
}

// Key implements cli.Flag. It returns the name of the flag.
func (flag BoolFlag) Key() string {
	return flag.Name
}
