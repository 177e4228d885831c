package enrich

import (
	"math/rand"

	"crisislens/internal/config"
)

// Age bucket labels.
const (
	AgeGroupChild      = "Child"
	AgeGroupYoungAdult = "Young Adult"
	AgeGroupAdult      = "Adult"
	AgeGroupSenior     = "Senior"
)

// AgeGroup buckets a caller age: <18 Child, <35 Young Adult, <55 Adult,
// else Senior. A missing age yields nil; the production path never
// fabricates a value.
func AgeGroup(age *int) *string {
	if age == nil {
		return nil
	}
	var g string
	switch {
	case *age < 18:
		g = AgeGroupChild
	case *age < 35:
		g = AgeGroupYoungAdult
	case *age < 55:
		g = AgeGroupAdult
	default:
		g = AgeGroupSenior
	}
	return &g
}

// ResponseTime draws a plausible minute value from the type's configured
// range. This is a synthetic placeholder for a field the live system does
// not measure yet.
func ResponseTime(cfg config.ClassifierConfig, emergencyType string) int {
	rr := cfg.ResponseRangeFor(emergencyType)
	return rr.MinMinutes + rand.Intn(rr.MaxMinutes-rr.MinMinutes+1)
}
