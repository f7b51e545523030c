package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPtr(t *testing.T) {
	s := "report_Sitrep"
	p := Ptr(s)

	s = "report_ORBAT"
	assert.Equal(t, "report_Sitrep", *p, "Ptr points at a copy")
	assert.NotSame(t, &s, p)
}
