package logic

// ActuatorKind selects how a channel drives its local indicator outputs.
type ActuatorKind string

const (
	// ActuatorNone drives nothing.
	ActuatorNone ActuatorKind = "none"
	// ActuatorMode drives a pair of mutually exclusive outputs:
	// Partial for Blinking, Full for Steady, neither otherwise.
	ActuatorMode ActuatorKind = "mode"
	// ActuatorSingle drives one output, active for anything but Off.
	ActuatorSingle ActuatorKind = "single"
)

// Actuator is one entry of the actuation table. Outputs are referenced by name.
type Actuator struct {
	Kind    ActuatorKind
	Full    string
	Partial string
	Output  string
}

// OutputWrite is a single logical output change.
type OutputWrite struct {
	Output string
	Active bool
}

// Actuate returns the output writes for a newly reported status, in the
// order they must be applied.
func (a Actuator) Actuate(status Status) []OutputWrite {
	switch a.Kind {
	case ActuatorMode:
		// Reset both first so the pair is never active together.
		writes := []OutputWrite{
			{Output: a.Full, Active: false},
			{Output: a.Partial, Active: false},
		}
		switch status {
		case StatusBlinking:
			writes = append(writes, OutputWrite{Output: a.Partial, Active: true})
		case StatusSteady:
			writes = append(writes, OutputWrite{Output: a.Full, Active: true})
		}
		return writes

	case ActuatorSingle:
		return []OutputWrite{{Output: a.Output, Active: status != StatusOff}}

	default:
		return nil
	}
}

// Outputs lists the output names the actuator may drive.
func (a Actuator) Outputs() []string {
	switch a.Kind {
	case ActuatorMode:
		return []string{a.Full, a.Partial}
	case ActuatorSingle:
		return []string{a.Output}
	default:
		return nil
	}
}
