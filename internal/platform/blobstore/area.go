package blobstore

import (
	"errors"
	"fmt"
	"strings"
)

// Area is the category a patient document is filed under.
type Area uint8

const (
	AreaSocial Area = iota + 1
	AreaMedico
	AreaPsicologico
	AreaFisico
	AreaEnfermeria
)

var ErrInvalidArea = errors.New("invalid area")

var areaNames = []struct {
	area Area
	slug string
	tag  string
}{
	{AreaSocial, "social", "SOCIAL"},
	{AreaMedico, "medico", "MEDICO"},
	{AreaPsicologico, "psicologico", "PSICOLOGICO"},
	{AreaFisico, "fisico", "FISICO"},
	{AreaEnfermeria, "enfermeria", "ENFERMERIA"},
}

func AllAreas() []Area {
	out := make([]Area, 0, len(areaNames))
	for _, n := range areaNames {
		out = append(out, n.area)
	}
	return out
}

// ParseArea accepts either the lower-case slug used in URLs and folders or
// the upper-case tag stored in the database, in any case.
func ParseArea(s string) (Area, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for _, n := range areaNames {
		if n.slug == norm {
			return n.area, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidArea, s)
}

// Slug is the lower-case folder and URL segment.
func (a Area) Slug() string {
	for _, n := range areaNames {
		if n.area == a {
			return n.slug
		}
	}
	return ""
}

// Tag is the canonical upper-case category persisted with the document.
func (a Area) Tag() string {
	for _, n := range areaNames {
		if n.area == a {
			return n.tag
		}
	}
	return ""
}

func (a Area) Valid() bool { return a.Slug() != "" }

func (a Area) String() string {
	if !a.Valid() {
		return fmt.Sprintf("Area(%d)", uint8(a))
	}
	return a.Slug()
}

func (a Area) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidArea, uint8(a))
	}
	return []byte(a.Tag()), nil
}

func (a *Area) UnmarshalText(text []byte) error {
	parsed, err := ParseArea(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
