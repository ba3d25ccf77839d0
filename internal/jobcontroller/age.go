package jobcontroller

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/Cray-HPE/ims-sub000/internal/apierrors"
)

// ageGrammar matches the "[Nw][Nd][Nh][Nm]" duration suffix grammar of
// spec §6's DELETE /v3/jobs?age= filter: any subset of week/day/hour/
// minute counts, in that order, each optional, but at least one present.
var ageGrammar = regexp.MustCompile(`^(?:(\d+)w)?(?:(\d+)d)?(?:(\d+)h)?(?:(\d+)m)?$`)

// ParseAge parses an age filter string into a time.Duration. An empty or
// all-zero match (no group present, or the literal "0") is rejected as a
// malformed filter (§7 BadRequest: "bad age grammar").
func ParseAge(s string) (time.Duration, error) {
	m := ageGrammar.FindStringSubmatch(s)
	if m == nil || s == "" {
		return 0, apierrors.Newf(apierrors.KindBadRequest, "age filter %q does not match the [Nw][Nd][Nh][Nm] grammar", s)
	}

	weeks, err := atoiOr0(m[1])
	if err != nil {
		return 0, err
	}
	days, err := atoiOr0(m[2])
	if err != nil {
		return 0, err
	}
	hours, err := atoiOr0(m[3])
	if err != nil {
		return 0, err
	}
	minutes, err := atoiOr0(m[4])
	if err != nil {
		return 0, err
	}

	if weeks == 0 && days == 0 && hours == 0 && minutes == 0 {
		return 0, apierrors.Newf(apierrors.KindBadRequest, "age filter %q does not match the [Nw][Nd][Nh][Nm] grammar", s)
	}

	d := time.Duration(weeks)*7*24*time.Hour +
		time.Duration(days)*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute
	return d, nil
}

func atoiOr0(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("jobcontroller: parsing age component %q: %w", s, err)
	}
	return n, nil
}
