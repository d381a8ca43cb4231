package diet

// Constants holds the analytics constants shared by the metrics, KPI,
// forecast and red-flags engines. One source of truth, passed in at
// construction, so the engines cannot drift apart on e.g. the BMR value.
type Constants struct {
	// BMRKcal is the basal metabolic rate baseline used in net calorie balance
	BMRKcal float64
	// KcalPerKgFat is the energy density of body fat
	KcalPerKgFat float64
	// TargetWeightKg is the goal weight, used for ETA and progress rules
	TargetWeightKg float64
}

func DefaultConstants() Constants {
	return Constants{
		BMRKcal:        2000,
		KcalPerKgFat:   7700,
		TargetWeightKg: 75,
	}
}
