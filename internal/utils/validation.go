package utils

import (
	"errors"
	"math"
	"regexp"
)

var (
	// Allow alphanumeric, underscore, hyphen, dot - place identifiers and button ids
	validIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
)

// ValidateID validates that an ID is safe and within reasonable limits
func ValidateID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}

	if len(id) > 100 {
		return errors.New("id too long (max 100 characters)")
	}

	if !validIDPattern.MatchString(id) {
		return errors.New("id contains invalid characters")
	}

	return nil
}

// ValidateLatitude validates latitude values
func ValidateLatitude(lat float64) error {
	if math.IsNaN(lat) || lat < -90.0 || lat > 90.0 {
		return errors.New("latitude must be between -90 and 90")
	}
	return nil
}

// ValidateLongitude validates longitude values
func ValidateLongitude(lon float64) error {
	if math.IsNaN(lon) || lon < -180.0 || lon > 180.0 {
		return errors.New("longitude must be between -180 and 180")
	}
	return nil
}

// ValidateAngle validates a heading or map bearing in degrees.
func ValidateAngle(angle float64) error {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return errors.New("angle must be a finite number")
	}
	if angle < -360 || angle > 720 {
		return errors.New("angle out of range")
	}
	return nil
}

// ValidateCardinalPoints accepts the two supported compass resolutions.
func ValidateCardinalPoints(points int) error {
	if points != int(FourPoints) && points != int(EightPoints) {
		return errors.New("points must be 4 or 8")
	}
	return nil
}

// ValidateLocationParams validates a lat/lon pair and collects field errors.
func ValidateLocationParams(lat, lon float64) map[string][]string {
	fieldErrors := make(map[string][]string)

	if err := ValidateLatitude(lat); err != nil {
		fieldErrors["lat"] = append(fieldErrors["lat"], err.Error())
	}

	if err := ValidateLongitude(lon); err != nil {
		fieldErrors["lon"] = append(fieldErrors["lon"], err.Error())
	}

	return fieldErrors
}
