package plcss

import "fmt"

type ErrUnitNotFound struct {
	UnitID
}

func (e ErrUnitNotFound) Error() string {
	return fmt.Sprintf("unit %d not found", e.UnitID)
}

type ErrUnitNameNotFound struct {
	Name string
}

func (e ErrUnitNameNotFound) Error() string {
	return fmt.Sprintf("no unit named %q", e.Name)
}

// ErrUnitHalted is returned when running a unit which stopped on a fault.
// The unit must be Reset before it will run again.
type ErrUnitHalted struct {
	UnitID
}

func (e ErrUnitHalted) Error() string {
	return fmt.Sprintf("unit %d is halted", e.UnitID)
}
