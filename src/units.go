package main

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// formatValue formats an axis value for display, using physical units where the
// axis unit is one periph knows about
func formatValue(unit string, v float64) string {
	switch unit {
	case "deg", "°":
		return physic.Angle(v * float64(physic.Degree)).String()
	case "rad":
		return physic.Angle(v * float64(physic.Radian)).String()
	case "mm":
		return physic.Distance(v * float64(physic.MilliMetre)).String()
	case "m":
		return physic.Distance(v * float64(physic.Metre)).String()
	case "":
		return formatDebugValue(v)
	default:
		return formatDebugValue(v) + " " + unit
	}
}

// formatDebugValue formats a float with smart precision
func formatDebugValue(v float64) string {
	if v >= 100 || v <= -100 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}
