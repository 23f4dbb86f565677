package schedule

import "fmt"

// HoursPerDay bounds the watering table.
const HoursPerDay = 24

// BuildWaterTimes divides the day into checkpoints every step hours,
// starting at midnight. A step of a day or more leaves a single daily check
// at hour 0.
func BuildWaterTimes(step int) ([]int, error) {
	if step <= 0 {
		return nil, fmt.Errorf("water step must be positive, got %d", step)
	}
	times := make([]int, 0, HoursPerDay/min(step, HoursPerDay))
	for h := 0; h < HoursPerDay; h += step {
		times = append(times, h)
	}
	return times, nil
}

func containsHour(times []int, hour int) bool {
	for _, h := range times {
		if h == hour {
			return true
		}
	}
	return false
}
