package plcss

import (
	"fmt"
	"time"

	"plcvm.org/plcvm/plcimg"
)

// FaultPolicy decides what happens to a unit after a scan cycle faults.
type FaultPolicy string

const (
	// PolicyHalt stops the unit until it is Reset.
	PolicyHalt FaultPolicy = "halt"
	// PolicyRestart clears the memory region and continues with the next cycle.
	PolicyRestart FaultPolicy = "restart"
)

func ParseFaultPolicy(s string) (FaultPolicy, error) {
	switch p := FaultPolicy(s); p {
	case PolicyHalt, PolicyRestart:
		return p, nil
	default:
		return "", fmt.Errorf("unknown fault policy %q", s)
	}
}

const (
	DefaultPeriod    = 100 * time.Millisecond
	DefaultStepLimit = 1 << 16
)

// UnitConfig is stored alongside each unit.
type UnitConfig struct {
	// StackSize overrides the image's stack size when non-zero.
	StackSize uint32 `json:"stack_size,omitempty"`
	// MemorySize overrides the image's memory size when non-zero.
	MemorySize uint32 `json:"memory_size,omitempty"`

	Policy FaultPolicy `json:"policy"`
	// Period is the time between the starts of scan cycles.
	Period time.Duration `json:"period"`
	// StepLimit bounds the number of instructions in one scan cycle.
	StepLimit uint64 `json:"step_limit"`
}

func DefaultUnitConfig() UnitConfig {
	return UnitConfig{
		Policy:    PolicyHalt,
		Period:    DefaultPeriod,
		StepLimit: DefaultStepLimit,
	}
}

func (c *UnitConfig) Validate() error {
	if _, err := ParseFaultPolicy(string(c.Policy)); err != nil {
		return err
	}
	if c.Period <= 0 {
		return fmt.Errorf("period must be positive, have %v", c.Period)
	}
	if c.StepLimit == 0 {
		return fmt.Errorf("step limit must be positive")
	}
	if c.StackSize > plcimg.MaxStackSize {
		return fmt.Errorf("stack size %d out of range", c.StackSize)
	}
	if c.MemorySize > plcimg.MaxMemorySize {
		return fmt.Errorf("memory size %d out of range", c.MemorySize)
	}
	return nil
}

// fill sets zero fields to their defaults.
func (c *UnitConfig) fill() {
	def := DefaultUnitConfig()
	if c.Policy == "" {
		c.Policy = def.Policy
	}
	if c.Period == 0 {
		c.Period = def.Period
	}
	if c.StepLimit == 0 {
		c.StepLimit = def.StepLimit
	}
}

// sizes returns the stack and memory sizes for running img under c.
func (c *UnitConfig) sizes(img *plcimg.Image) (stack, memory int, _ error) {
	stack, memory = int(img.StackSize), int(img.MemorySize)
	if c.StackSize != 0 {
		stack = int(c.StackSize)
	}
	if c.MemorySize != 0 {
		memory = int(c.MemorySize)
	}
	if len(img.Init) > memory {
		return 0, 0, fmt.Errorf("image %s needs %d bytes of memory, have %d", img.Name, len(img.Init), memory)
	}
	return stack, memory, nil
}
